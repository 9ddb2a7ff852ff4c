package dto

import (
	"context"
	"errors"

	"aur-admin-data/internal/join"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/query"
	"aur-admin-data/internal/schema"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"
)

const (
	KindBackend    = "backend"
	KindValidation = "validation"
	KindDangling   = "dangling_reference"
	KindPartial    = "partial_collection"
	KindDisabled   = "disabled"
	KindInvalid    = "invalid_request"
	KindTimeout    = "timeout"
	KindInternal   = "internal"
)

func MapCacheEntry(e store.Entry) CacheEntry {
	out := CacheEntry{
		Key:         e.Key.String(),
		Entity:      string(e.Key.Entity),
		HasData:     e.HasData,
		Stale:       e.Stale,
		Fetching:    e.Fetching,
		Generation:  e.Generation,
		Subscribers: e.Subscribers,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return out
}

func MapCacheEntries(entries []store.Entry) CacheEntries {
	out := CacheEntries{Entries: make([]CacheEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, MapCacheEntry(e))
	}
	return out
}

func MapKeys(keys []store.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

func MapMutationResult(res mutation.Result) MutationResponse {
	return MutationResponse{
		Kind:        string(res.Kind),
		Entity:      string(res.Entity),
		Invalidated: MapKeys(res.Invalidated),
	}
}

// MapError classifies err for an API answer.
func MapError(err error) ErrorResponse {
	out := ErrorResponse{Error: err.Error(), Kind: KindInternal}

	var (
		terr     *transport.Error
		verr     *schema.ValidationError
		dangling *join.DanglingReferenceError
	)
	switch {
	case errors.As(err, &dangling):
		out.Kind = KindDangling
		out.DishID = dangling.DishID
		out.RestaurantID = dangling.RestaurantID
	case errors.As(err, &verr):
		out.Kind = KindValidation
		out.Schema = verr.Schema
		out.Field = verr.Path
		out.Expected = verr.Expected
		out.Got = verr.Got
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	case errors.As(err, &terr):
		out.Kind = KindBackend
		out.Method = terr.Method
		out.Path = terr.Path
		out.Status = terr.Status
	case errors.Is(err, join.ErrPartialCollection):
		out.Kind = KindPartial
	case errors.Is(err, query.ErrDisabled):
		out.Kind = KindDisabled
	case errors.Is(err, mutation.ErrInvalid), errors.Is(err, mutation.ErrUnknownKind):
		out.Kind = KindInvalid
	}
	return out
}
