// Package query resolves cached reads through the store: it serves fresh
// entries directly, deduplicates concurrent fetches of the same key and keeps
// stale data visible while a refetch is running.
package query

import (
	"context"
	"errors"
	"fmt"

	"aur-admin-data/internal/store"
)

// ErrDisabled is returned by Fetch for a query whose Enabled flag is false.
var ErrDisabled = errors.New("query is disabled")

type FetchFunc[T any] func(ctx context.Context) (T, error)

// Query describes one cached read. A disabled query never reaches the
// transport; it is used to hold a read back until a dependency has loaded.
type Query[T any] struct {
	Key     store.Key
	Fetch   FetchFunc[T]
	Enabled bool
}

func New[T any](key store.Key, fetch FetchFunc[T]) Query[T] {
	return Query[T]{Key: key, Fetch: fetch, Enabled: true}
}

// When returns a copy of q gated on enabled.
func (q Query[T]) When(enabled bool) Query[T] {
	q.Enabled = enabled
	return q
}

func (q Query[T]) erase() func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return q.Fetch(ctx)
	}
}

// State is what a consumer renders for a query at one point in time.
type State[S any] struct {
	Data    S
	HasData bool
	// IsLoading is true while the first fetch of a key runs and nothing can be shown.
	IsLoading  bool
	IsFetching bool
	IsSuccess  bool
	IsError    bool
	IsStale    bool
	// IsPlaceholder marks data carried over from the previous key of an Observer.
	IsPlaceholder bool
	IsDisabled    bool
	Err           error
}

// Identity is the select function for consumers that want the raw result.
func Identity[T any](v T) T { return v }

func cast[T any](key store.Key, v any) (T, error) {
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("query %s: cached value is %T, not %T", key.String(), v, zero)
	}
	return out, nil
}

func stateOf[T, S any](e store.Entry, sel func(T) S) State[S] {
	st := State[S]{
		IsFetching: e.Fetching,
		IsStale:    e.Stale,
		Err:        e.Err,
		IsError:    e.Err != nil,
	}
	if e.HasData {
		raw, err := cast[T](e.Key, e.Data)
		if err != nil {
			st.Err = err
			st.IsError = true
			return st
		}
		st.Data = sel(raw)
		st.HasData = true
		st.IsSuccess = !st.IsError
	}
	st.IsLoading = !st.HasData && st.IsFetching
	return st
}
