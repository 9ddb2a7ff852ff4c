package query

import (
	"context"
	"sync"

	"aur-admin-data/internal/store"
)

// Observer follows one query over time the way a mounted view does. It
// subscribes to the store, refetches when its key is invalidated and, after
// SetQuery switches to a key with nothing cached yet, keeps showing the last
// data it had as a placeholder until the new result lands.
type Observer[T, S any] struct {
	r   *Resolver
	sel func(T) S

	mu          sync.Mutex
	q           Query[T]
	sub         store.Subscription
	subscribed  bool
	placeholder *S
	listeners   []func(State[S])
	closed      bool
}

func Observe[T, S any](r *Resolver, q Query[T], sel func(T) S) *Observer[T, S] {
	o := &Observer[T, S]{r: r, sel: sel}
	o.SetQuery(q)
	return o
}

// SetQuery points the observer at a new query. Data from the previous key
// stays visible until the new key has data of its own.
func (o *Observer[T, S]) SetQuery(q Query[T]) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.subscribed {
		o.r.store.Unsubscribe(o.sub)
		o.subscribed = false
	}
	o.q = q
	if q.Enabled {
		o.sub = o.r.store.Subscribe(q.Key, o.onEvent)
		o.subscribed = true
	}
	o.mu.Unlock()

	o.notify(o.State())
}

// State resolves the current query and starts a fetch if it is needed.
func (o *Observer[T, S]) State() State[S] {
	o.mu.Lock()
	q := o.q
	o.mu.Unlock()

	st := Resolve(o.r, q, o.sel)
	return o.withPlaceholder(st)
}

func (o *Observer[T, S]) withPlaceholder(st State[S]) State[S] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if st.HasData {
		data := st.Data
		o.placeholder = &data
		return st
	}
	if st.IsDisabled || o.placeholder == nil {
		return st
	}
	st.Data = *o.placeholder
	st.HasData = true
	st.IsPlaceholder = true
	st.IsLoading = false
	return st
}

// OnChange registers fn to be called with the new state after every store
// event for the current key.
func (o *Observer[T, S]) OnChange(fn func(State[S])) {
	o.mu.Lock()
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// Refetch fetches the current query even if it is fresh.
func (o *Observer[T, S]) Refetch(ctx context.Context) (State[S], error) {
	o.mu.Lock()
	q := o.q
	o.mu.Unlock()

	if _, err := Refetch(ctx, o.r, q); err != nil {
		return o.State(), err
	}
	return o.State(), nil
}

func (o *Observer[T, S]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subscribed {
		o.r.store.Unsubscribe(o.sub)
		o.subscribed = false
	}
	o.listeners = nil
	o.closed = true
}

func (o *Observer[T, S]) onEvent(ev store.Event) {
	o.mu.Lock()
	current := !o.closed && o.q.Key == ev.Entry.Key
	o.mu.Unlock()
	if !current {
		return
	}

	var st State[S]
	if ev.Kind == store.Invalidated {
		// Resolve sees the stale entry and starts the refetch
		st = o.State()
	} else {
		st = o.withPlaceholder(stateOf(ev.Entry, o.sel))
	}
	o.notify(st)
}

func (o *Observer[T, S]) notify(st State[S]) {
	o.mu.Lock()
	listeners := make([]func(State[S]), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
