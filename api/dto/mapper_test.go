package dto

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/join"
	"aur-admin-data/internal/mutation"
	"aur-admin-data/internal/query"
	"aur-admin-data/internal/schema"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"backend", &transport.Error{Method: "GET", Path: "admin/tags", Status: 500}, KindBackend},
		{"timeout", &transport.Error{Method: "GET", Path: "admin/tags", Err: context.DeadlineExceeded}, KindTimeout},
		{"validation", &schema.ValidationError{Schema: "tags", Path: "$.total"}, KindValidation},
		{"dangling", fmt.Errorf("dish: %w", &join.DanglingReferenceError{DishID: 5, RestaurantID: 99}), KindDangling},
		{"partial", join.ErrPartialCollection, KindPartial},
		{"disabled", query.ErrDisabled, KindDisabled},
		{"invalid", fmt.Errorf("%w: dish id is required", mutation.ErrInvalid), KindInvalid},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, MapError(tt.err).Kind)
		})
	}
}

func TestMapError_Details(t *testing.T) {
	resp := MapError(&join.DanglingReferenceError{DishID: 5, VariationID: 7, RestaurantID: 99})
	assert.Equal(t, int64(99), resp.RestaurantID)
	assert.Equal(t, int64(5), resp.DishID)

	resp = MapError(&schema.ValidationError{Schema: "tags", Path: "$.list[0].name", Expected: "string", Got: "number"})
	assert.Equal(t, "$.list[0].name", resp.Field)
	assert.Equal(t, "tags", resp.Schema)

	resp = MapError(&transport.Error{Method: "PUT", Path: "admin/dish", Status: 409, Body: "conflict"})
	assert.Equal(t, 409, resp.Status)
	assert.Equal(t, "PUT", resp.Method)
}

func TestMapCacheEntries(t *testing.T) {
	s := store.New()
	s.Set(store.NewKey(entity.Tag), 1)
	s.Fail(s.Begin(store.NewKey(entity.Dish, store.P("id", 3))), errors.New("down"))
	s.InvalidateEntity(entity.Tag)

	got := MapCacheEntries(s.Snapshot())
	assert.Len(t, got.Entries, 2)
	assert.Equal(t, "dish?id=3", got.Entries[0].Key)
	assert.Equal(t, "down", got.Entries[0].Error)
	assert.False(t, got.Entries[0].HasData)
	assert.Equal(t, "tag", got.Entries[1].Entity)
	assert.True(t, got.Entries[1].Stale)
	assert.Equal(t, uint64(1), got.Entries[1].Generation)
}

func TestMapMutationResult(t *testing.T) {
	res := mutation.Result{
		Kind:        mutation.KindCreateDish,
		Entity:      entity.Dish,
		Invalidated: []store.Key{store.NewKey(entity.Dish, store.P("id", 1))},
	}
	got := MapMutationResult(res)
	assert.Equal(t, "create-dish", got.Kind)
	assert.Equal(t, []string{"dish?id=1"}, got.Invalidated)
}
