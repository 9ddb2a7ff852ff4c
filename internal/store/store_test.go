package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"aur-admin-data/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listKey(offset, limit int, search string) Key {
	return NewKey(entity.Dish, P("offset", offset), P("limit", limit), P("search", search))
}

func TestNewKey_Canonical(t *testing.T) {
	a := NewKey(entity.Dish, P("offset", 0), P("limit", 10), P("search", "soup"))
	b := NewKey(entity.Dish, P("search", "soup"), P("offset", 0), P("limit", 10))
	c := NewKey(entity.Dish, P("limit", 10), P("search", "soup"), P("offset", 0))

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, "dish?limit=10&offset=0&search=soup", a.String())

	assert.NotEqual(t, a, NewKey(entity.Review, P("offset", 0), P("limit", 10), P("search", "soup")))
	assert.NotEqual(t, a, NewKey(entity.Dish, P("offset", 10), P("limit", 10), P("search", "soup")))
}

func TestStore_PermutedKeysShareEntry(t *testing.T) {
	s := New()
	s.Set(NewKey(entity.Dish, P("offset", 0), P("limit", 10), P("search", "")), "page")

	e, ok := s.Get(NewKey(entity.Dish, P("search", ""), P("limit", 10), P("offset", 0)))
	require.True(t, ok)
	assert.Equal(t, "page", e.Data)
	assert.Equal(t, 1, s.Len())
}

func TestStore_SetMarksFreshAndPublishes(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")

	var events []Event
	s.Subscribe(key, func(ev Event) { events = append(events, ev) })

	s.Set(key, 42)

	e, ok := s.Get(key)
	require.True(t, ok)
	assert.True(t, e.Fresh())
	assert.False(t, e.Fetching)
	assert.Equal(t, 42, e.Data)

	require.Len(t, events, 1)
	assert.Equal(t, Updated, events[0].Kind)
	assert.Equal(t, 42, events[0].Entry.Data)
}

func TestStore_InvalidateEntityScope(t *testing.T) {
	s := New()
	dishKeys := []Key{
		listKey(0, 10, ""),
		listKey(10, 10, ""),
		listKey(0, 25, "soup"),
		NewKey(entity.Dish, P("id", 3)),
	}
	for _, k := range dishKeys {
		s.Set(k, "dish data")
	}
	reviewKey := NewKey(entity.Review, P("offset", 0), P("limit", 10), P("search", ""))
	s.Set(reviewKey, "review data")

	got := s.InvalidateEntity(entity.Dish)
	assert.Len(t, got, len(dishKeys))

	for _, k := range dishKeys {
		e, ok := s.Get(k)
		require.True(t, ok)
		assert.True(t, e.Stale, k.String())
		assert.True(t, e.HasData, "stale data stays available")
		assert.Equal(t, "dish data", e.Data)
		assert.Equal(t, uint64(1), e.Generation)
	}

	e, ok := s.Get(reviewKey)
	require.True(t, ok)
	assert.False(t, e.Stale)
	assert.Equal(t, uint64(0), e.Generation)
}

func TestStore_InvalidateIsExactMatch(t *testing.T) {
	s := New()
	s.Set(NewKey(entity.Restaurant), "restaurants")
	s.Set(NewKey(entity.Review), "reviews")

	s.InvalidateEntity(entity.Review)

	e, _ := s.Get(NewKey(entity.Restaurant))
	assert.False(t, e.Stale)
}

func TestStore_InvalidateNotifiesSubscribers(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")
	s.Set(key, "v")

	var kinds []EventKind
	sub := s.Subscribe(key, func(ev Event) { kinds = append(kinds, ev.Kind) })
	s.InvalidateEntity(entity.Dish)
	assert.Equal(t, []EventKind{Invalidated}, kinds)

	assert.True(t, s.Unsubscribe(sub))
	assert.False(t, s.Unsubscribe(sub))
	s.InvalidateEntity(entity.Dish)
	assert.Len(t, kinds, 1)
}

func TestStore_CommitIssuanceOrder(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")

	older := s.Begin(key)
	newer := s.Begin(key)

	e, _ := s.Get(key)
	assert.True(t, e.Fetching)

	assert.True(t, s.Commit(newer, "new"))
	assert.False(t, s.Commit(older, "old"))

	e, _ = s.Get(key)
	assert.Equal(t, "new", e.Data)
	assert.False(t, e.Fetching)
}

func TestStore_CommitIssuedBeforeInvalidationStaysStale(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")

	ticket := s.Begin(key)
	s.InvalidateEntity(entity.Dish)
	require.True(t, s.Commit(ticket, "v"))

	e, _ := s.Get(key)
	assert.True(t, e.HasData)
	assert.True(t, e.Stale)

	s.Set(key, "v2")
	e, _ = s.Get(key)
	assert.True(t, e.Fresh())
}

func TestStore_FailedNewerFetchDiscardsOlderResult(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")

	older := s.Begin(key)
	newer := s.Begin(key)
	boom := errors.New("boom")
	s.Fail(newer, boom)

	assert.False(t, s.Commit(older, "v1-older"))

	e, ok := s.Get(key)
	require.True(t, ok)
	assert.False(t, e.HasData)
	assert.ErrorIs(t, e.Err, boom)
	assert.False(t, e.Fetching)
}

func TestStore_UpdatedAtUsesClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return at }))
	key := listKey(0, 10, "")

	s.Set(key, "v")

	e, _ := s.Get(key)
	assert.Equal(t, at, e.UpdatedAt)
}

func TestStore_FailKeepsData(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")
	s.Set(key, "v1")

	var got []Event
	s.Subscribe(key, func(ev Event) { got = append(got, ev) })

	boom := errors.New("boom")
	s.Fail(s.Begin(key), boom)

	e, _ := s.Get(key)
	assert.Equal(t, "v1", e.Data)
	assert.ErrorIs(t, e.Err, boom)
	require.Len(t, got, 1)
	assert.Equal(t, Failed, got[0].Kind)

	s.Set(key, "v2")
	e, _ = s.Get(key)
	assert.NoError(t, e.Err)
}

func TestStore_RemoveRespectsSubscribersAndFetches(t *testing.T) {
	s := New()
	key := listKey(0, 10, "")
	s.Set(key, "v")

	sub := s.Subscribe(key, func(Event) {})
	assert.False(t, s.Remove(key))

	s.Unsubscribe(sub)
	ticket := s.Begin(key)
	assert.False(t, s.Remove(key))

	s.Commit(ticket, "v2")
	assert.True(t, s.Remove(key))
	_, ok := s.Get(key)
	assert.False(t, ok)
}

func TestStore_LRUEvictionSkipsSubscribed(t *testing.T) {
	policy, err := NewLRUPolicy(2)
	require.NoError(t, err)
	s := New(WithEviction(policy))

	pinned := listKey(0, 10, "")
	s.Set(pinned, "pinned")
	s.Subscribe(pinned, func(Event) {})

	s.Set(listKey(10, 10, ""), "b")
	s.Set(listKey(20, 10, ""), "c")
	s.Set(listKey(30, 10, ""), "d")

	_, ok := s.Get(pinned)
	assert.True(t, ok, "subscribed entry must survive eviction")
	_, ok = s.Get(listKey(10, 10, ""))
	assert.False(t, ok)
	_, ok = s.Get(listKey(30, 10, ""))
	assert.True(t, ok)
}

func TestStore_LRUBoundsFailedFetches(t *testing.T) {
	policy, err := NewLRUPolicy(2)
	require.NoError(t, err)
	s := New(WithEviction(policy))

	notFound := errors.New("404")
	for id := 0; id < 50; id++ {
		s.Fail(s.Begin(NewKey(entity.Dish, P("id", id))), notFound)
	}

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, policy.Len())
	_, ok := s.Get(NewKey(entity.Dish, P("id", 49)))
	assert.True(t, ok)
	_, ok = s.Get(NewKey(entity.Dish, P("id", 0)))
	assert.False(t, ok)
}

func TestStore_LRUBoundsSubscribeOnlyKeys(t *testing.T) {
	policy, err := NewLRUPolicy(2)
	require.NoError(t, err)
	s := New(WithEviction(policy))

	for id := 0; id < 10; id++ {
		s.Unsubscribe(s.Subscribe(NewKey(entity.Dish, P("id", id)), func(Event) {}))
	}

	assert.Equal(t, 2, s.Len())
}

func TestStore_LRUTracksKeyAgainAfterUnsubscribe(t *testing.T) {
	policy, err := NewLRUPolicy(2)
	require.NoError(t, err)
	s := New(WithEviction(policy))

	pinned := listKey(0, 10, "")
	s.Set(pinned, "pinned")
	sub := s.Subscribe(pinned, func(Event) {})

	s.Set(listKey(10, 10, ""), "b")
	s.Set(listKey(20, 10, ""), "c")
	assert.Equal(t, 3, s.Len(), "subscribed entry is skipped, not dropped")

	require.True(t, s.Unsubscribe(sub))
	s.Set(listKey(30, 10, ""), "d")
	s.Set(listKey(40, 10, ""), "e")

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get(pinned)
	assert.False(t, ok)
}

func TestNewLRUPolicy_InvalidSize(t *testing.T) {
	_, err := NewLRUPolicy(0)
	assert.Error(t, err)
}

func TestStore_Snapshot(t *testing.T) {
	s := New()
	s.Set(NewKey(entity.Tag), 1)
	s.Set(NewKey(entity.Dish, P("id", 1)), 2)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "dish?id=1", snap[0].Key.String())
	assert.Equal(t, "tag", snap[1].Key.String())

	s.Close()
	assert.Equal(t, 0, s.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := listKey(i%5, 10, "")
			s.Set(key, i)
			s.Get(key)
			s.InvalidateEntity(entity.Dish)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, s.Len())
}
