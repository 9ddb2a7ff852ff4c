// Package store holds the process-wide query cache: results keyed by Key,
// their freshness, in-flight fetch bookkeeping and per-key subscribers.
//
// The Store is the only shared mutable state of the data layer. It is
// constructed explicitly at startup and handed to every component that needs
// it; nothing reads or writes records except through its methods.
//
// Fetches are ticketed. Begin issues a ticket with a per-key sequence number,
// Commit applies a result only if no later-issued ticket has been applied
// already, so overlapping fetches settle in issuance order rather than in
// completion order. A result from a fetch issued before the latest
// invalidation is kept but stays stale.
package store

import (
	"sort"
	"sync"
	"time"

	"aur-admin-data/internal/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventKind int

const (
	Updated EventKind = iota + 1
	Invalidated
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Updated:
		return "updated"
	case Invalidated:
		return "invalidated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time copy of a cached record.
type Entry struct {
	Key       Key
	Data      any
	HasData   bool
	Stale     bool
	Fetching  bool
	Err       error
	UpdatedAt time.Time
	// Generation increases on every invalidation of the key.
	Generation  uint64
	Subscribers int
}

// Fresh reports whether the entry holds data that can be served without a refetch.
func (e Entry) Fresh() bool { return e.HasData && !e.Stale }

type Event struct {
	Kind  EventKind
	Entry Entry
}

type Listener func(Event)

type Subscription struct {
	id  uuid.UUID
	key Key
}

func (s Subscription) Key() Key { return s.key }

// Ticket identifies one fetch issued through Begin.
type Ticket struct {
	key Key
	seq uint64
}

func (t Ticket) Key() Key { return t.key }

type record struct {
	data      any
	hasData   bool
	stale     bool
	err       error
	updatedAt time.Time

	issued        uint64
	applied       uint64
	invalidatedAt uint64
	inflight      int
	generation    uint64

	listeners map[uuid.UUID]Listener
}

type Store struct {
	mu      sync.Mutex
	records map[Key]*record
	policy  EvictionPolicy
	now     func() time.Time
}

type Option func(*Store)

// WithEviction plugs an eviction policy into the store. Without one the
// store is an unbounded map.
func WithEviction(p EvictionPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[Key]*record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy != nil {
		s.policy.Bind(s.evict)
	}
	return s
}

func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	rec, ok := s.records[key]
	if !ok {
		s.mu.Unlock()
		return Entry{}, false
	}
	e := rec.entry(key)
	s.mu.Unlock()

	if e.HasData {
		s.touch(key)
	}
	return e, true
}

// Set stores data for key, marks it fresh and publishes it to subscribers.
func (s *Store) Set(key Key, data any) {
	s.Commit(s.Begin(key), data)
}

// Begin registers a fetch for key and returns its ticket. The record is
// created if it does not exist yet.
func (s *Store) Begin(key Key) Ticket {
	s.mu.Lock()
	rec := s.recordLocked(key)
	rec.issued++
	rec.inflight++
	t := Ticket{key: key, seq: rec.issued}
	s.mu.Unlock()

	s.touch(key)
	return t
}

// Commit applies the result of the fetch identified by t. It returns false
// when the result was discarded because a later-issued fetch already landed.
func (s *Store) Commit(t Ticket, data any) bool {
	s.mu.Lock()
	rec, ok := s.records[t.key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	rec.inflight--
	if t.seq < rec.applied {
		s.mu.Unlock()
		zap.S().Debugw("discarding out-of-order result", "key", t.key.String(), "seq", t.seq, "applied", rec.applied)
		s.touch(t.key)
		return false
	}
	rec.data = data
	rec.hasData = true
	rec.err = nil
	rec.applied = t.seq
	rec.stale = t.seq <= rec.invalidatedAt
	rec.updatedAt = s.now()
	ev := Event{Kind: Updated, Entry: rec.entry(t.key)}
	listeners := rec.listenerList()
	s.mu.Unlock()

	s.touch(t.key)
	publish(listeners, ev)
	return true
}

// Fail records the failure of the fetch identified by t. Cached data is left
// untouched; the error is only kept when no later-issued fetch has landed.
// A failure counts as landed, so older fetches completing after it are
// discarded.
func (s *Store) Fail(t Ticket, err error) {
	s.mu.Lock()
	rec, ok := s.records[t.key]
	if !ok {
		s.mu.Unlock()
		return
	}
	rec.inflight--
	if t.seq < rec.applied {
		s.mu.Unlock()
		s.touch(t.key)
		return
	}
	rec.err = err
	rec.applied = t.seq
	ev := Event{Kind: Failed, Entry: rec.entry(t.key)}
	listeners := rec.listenerList()
	s.mu.Unlock()

	s.touch(t.key)
	publish(listeners, ev)
}

// Invalidate marks every entry whose key satisfies match as stale. Data is
// kept for display; subscribers receive an Invalidated event so they can
// refetch. The affected keys are returned in canonical order.
func (s *Store) Invalidate(match func(Key) bool) []Key {
	type pending struct {
		ev        Event
		listeners []Listener
	}

	s.mu.Lock()
	var (
		keys  []Key
		queue []pending
	)
	for key, rec := range s.records {
		if !match(key) {
			continue
		}
		rec.stale = true
		rec.generation++
		rec.invalidatedAt = rec.issued
		keys = append(keys, key)
		queue = append(queue, pending{
			ev:        Event{Kind: Invalidated, Entry: rec.entry(key)},
			listeners: rec.listenerList(),
		})
	}
	s.mu.Unlock()

	sort.Slice(queue, func(i, j int) bool {
		return queue[i].ev.Entry.Key.String() < queue[j].ev.Entry.Key.String()
	})
	sortKeys(keys)
	for _, p := range queue {
		publish(p.listeners, p.ev)
	}
	return keys
}

// InvalidateEntity invalidates every entry of exactly the given entity,
// whatever its parameters.
func (s *Store) InvalidateEntity(name entity.Name) []Key {
	return s.Invalidate(func(k Key) bool { return k.Entity == name })
}

// Subscribe registers l for changes of key. The record is created empty if
// it does not exist so the subscription survives until a result arrives.
func (s *Store) Subscribe(key Key, l Listener) Subscription {
	s.mu.Lock()
	rec := s.recordLocked(key)
	id := uuid.New()
	rec.listeners[id] = l
	s.mu.Unlock()

	s.touch(key)
	return Subscription{id: id, key: key}
}

// Unsubscribe removes sub. The key is handed back to the eviction policy,
// which may have skipped it while it was subscribed.
func (s *Store) Unsubscribe(sub Subscription) bool {
	s.mu.Lock()
	rec, ok := s.records[sub.key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, ok := rec.listeners[sub.id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(rec.listeners, sub.id)
	s.mu.Unlock()

	s.touch(sub.key)
	return true
}

// Remove drops key from the store. Entries with subscribers or a fetch in
// flight are kept and false is returned.
func (s *Store) Remove(key Key) bool {
	if !s.evict(key) {
		return false
	}
	if s.policy != nil {
		s.policy.Removed(key)
	}
	return true
}

// Snapshot returns a copy of every entry in canonical key order.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.records))
	for key, rec := range s.records {
		out = append(out, rec.entry(key))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close drops every record. Listeners are not notified.
func (s *Store) Close() {
	s.mu.Lock()
	s.records = make(map[Key]*record)
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.Purge()
	}
}

func (s *Store) evict(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false
	}
	if len(rec.listeners) > 0 || rec.inflight > 0 {
		return false
	}
	delete(s.records, key)
	zap.S().Debugw("cache entry evicted", "key", key.String())
	return true
}

func (s *Store) touch(key Key) {
	if s.policy != nil {
		s.policy.Touched(key)
	}
}

func (s *Store) recordLocked(key Key) *record {
	rec, ok := s.records[key]
	if !ok {
		rec = &record{listeners: make(map[uuid.UUID]Listener)}
		s.records[key] = rec
	}
	return rec
}

func (r *record) entry(key Key) Entry {
	return Entry{
		Key:         key,
		Data:        r.data,
		HasData:     r.hasData,
		Stale:       r.stale,
		Fetching:    r.inflight > 0,
		Err:         r.err,
		UpdatedAt:   r.updatedAt,
		Generation:  r.generation,
		Subscribers: len(r.listeners),
	}
}

func (r *record) listenerList() []Listener {
	out := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func publish(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
