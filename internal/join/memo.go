package join

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"aur-admin-data/internal/config"
	"aur-admin-data/internal/metrics"
	"aur-admin-data/internal/model"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// Memo caches resolved dishes keyed by the fingerprints of both inputs, so
// a changed dish or a changed restaurant collection never hits an old entry.
type Memo struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func NewMemo(cfg config.Join) (*Memo, error) {
	maxCostBytes, err := cfg.MaxCostBytes()
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     int64(maxCostBytes),
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create join memo: %w", err)
	}
	return &Memo{cache: cache, ttl: cfg.TTL}, nil
}

// Resolve returns the memoized resolution of dish against restaurants,
// computing and storing it on a miss. Failed resolutions are not stored.
func (m *Memo) Resolve(dish model.Dish, restaurants *Index) (model.ResolvedDish, error) {
	if restaurants == nil {
		return ResolveDishVariations(dish, nil)
	}
	raw, err := json.Marshal(dish)
	if err != nil {
		return model.ResolvedDish{}, fmt.Errorf("fingerprint dish %d: %w", dish.ID, err)
	}
	key := fmt.Sprintf("%016x:%016x", xxhash.Sum64(raw), restaurants.Fingerprint())

	if v, ok := m.cache.Get(key); ok {
		if resolved, castOk := v.(model.ResolvedDish); castOk {
			metrics.RecordJoinMemo(true)
			return clone(resolved), nil
		}
	}
	metrics.RecordJoinMemo(false)

	resolved, err := ResolveDishVariations(dish, restaurants)
	if err != nil {
		return model.ResolvedDish{}, err
	}
	m.cache.SetWithTTL(key, clone(resolved), int64(len(raw)), m.ttl)
	return clone(resolved), nil
}

// Wait blocks until pending writes are visible to Resolve.
func (m *Memo) Wait() { m.cache.Wait() }

func (m *Memo) Close() { m.cache.Close() }

// clone deep-copies every slice and pointer of d, so memo entries and the
// copies handed to callers never share backing arrays.
func clone(d model.ResolvedDish) model.ResolvedDish {
	d.Variations = slices.Clone(d.Variations)
	d.Dish.Variations = slices.Clone(d.Dish.Variations)
	d.Tags = slices.Clone(d.Tags)
	d.Categories = slices.Clone(d.Categories)
	if d.DeletedAt != nil {
		deletedAt := *d.DeletedAt
		d.DeletedAt = &deletedAt
	}
	return d
}
