package query

import (
	"context"
	"strconv"
	"time"

	"aur-admin-data/internal/metrics"
	"aur-admin-data/internal/store"

	"golang.org/x/sync/singleflight"
)

type Resolver struct {
	store   *store.Store
	group   singleflight.Group
	limiter *limiter
	timeout time.Duration
}

type Option func(*Resolver)

// WithConcurrency caps the number of fetches running at the same time.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.limiter = newLimiter(n) }
}

// WithFetchTimeout bounds every fetch. Zero leaves timeouts to the transport.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func NewResolver(s *store.Store, opts ...Option) *Resolver {
	r := &Resolver{store: s}
	for _, opt := range opts {
		opt(r)
	}
	if r.limiter == nil {
		r.limiter = newLimiter(defaultConcurrency)
	}
	return r
}

func (r *Resolver) Store() *store.Store { return r.store }

// flight starts the fetch for key or attaches to the one already running.
// Flights are keyed by generation so that a read issued after an
// invalidation never joins a fetch issued before it.
func (r *Resolver) flight(key store.Key, fetch func(context.Context) (any, error)) <-chan singleflight.Result {
	var gen uint64
	if e, ok := r.store.Get(key); ok {
		gen = e.Generation
	}
	id := key.String() + "#" + strconv.FormatUint(gen, 10)

	return r.group.DoChan(id, func() (any, error) {
		ctx := context.Background()
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		ticket := r.store.Begin(key)
		start := time.Now()
		data, err := r.limiter.run(ctx, key.String(), fetch)
		metrics.RecordFetch(string(key.Entity), err, time.Since(start).Seconds())
		if err != nil {
			r.store.Fail(ticket, err)
			return nil, err
		}
		r.store.Commit(ticket, data)
		return data, nil
	})
}

func (r *Resolver) lookup(key store.Key) (store.Entry, bool) {
	e, ok := r.store.Get(key)
	entity := string(key.Entity)
	switch {
	case ok && e.Fresh():
		metrics.RecordLookup(entity, "fresh")
	case ok && e.HasData:
		metrics.RecordLookup(entity, "stale")
	default:
		metrics.RecordLookup(entity, "miss")
	}
	return e, ok
}

func wait[T any](ctx context.Context, key store.Key, ch <-chan singleflight.Result) (T, error) {
	var zero T
	select {
	case res := <-ch:
		if res.Shared {
			metrics.RecordDeduplicated(string(key.Entity))
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return cast[T](key, res.Val)
	case <-ctx.Done():
		// the fetch keeps running and still lands in the store
		return zero, ctx.Err()
	}
}

// Fetch returns the data for q, from the cache when it is fresh or from a
// (possibly shared) fetch otherwise. Cancelling ctx abandons the wait, not
// the fetch.
func Fetch[T any](ctx context.Context, r *Resolver, q Query[T]) (T, error) {
	if !q.Enabled {
		var zero T
		return zero, ErrDisabled
	}
	if e, ok := r.lookup(q.Key); ok && e.Fresh() {
		return cast[T](q.Key, e.Data)
	}
	return wait[T](ctx, q.Key, r.flight(q.Key, q.erase()))
}

// Refetch fetches q even if its cache entry is fresh.
func Refetch[T any](ctx context.Context, r *Resolver, q Query[T]) (T, error) {
	if !q.Enabled {
		var zero T
		return zero, ErrDisabled
	}
	return wait[T](ctx, q.Key, r.flight(q.Key, q.erase()))
}

// Resolve reports the current state of q without blocking. When the entry is
// missing or stale a background fetch is started (or joined) and the state
// reports it as fetching; stale data stays in State.Data meanwhile.
// sel is applied to the cached value on every call and must not modify it.
func Resolve[T, S any](r *Resolver, q Query[T], sel func(T) S) State[S] {
	if !q.Enabled {
		return State[S]{IsDisabled: true}
	}
	e, ok := r.lookup(q.Key)
	if !ok {
		e = store.Entry{Key: q.Key}
	}
	started := false
	if !e.Fresh() {
		r.flight(q.Key, q.erase())
		started = true
	}
	st := stateOf(e, sel)
	if started {
		st.IsFetching = true
		st.IsLoading = !st.HasData
	}
	return st
}
