// Package join attaches restaurant details to dish variations.
//
// Resolution is pure: the same dish and the same restaurant collection
// always produce the same resolved dish, which is what lets Memo cache the
// resolved form separately from the raw one.
package join

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"aur-admin-data/internal/model"

	"github.com/cespare/xxhash/v2"
)

// ErrPartialCollection is returned when an index is built from a page that
// does not hold the whole restaurant collection.
var ErrPartialCollection = errors.New("restaurant collection is partial")

// DanglingReferenceError reports a variation pointing at a restaurant that
// is not in the collection.
type DanglingReferenceError struct {
	DishID       int64
	VariationID  int64
	RestaurantID int64
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dish %d: variation %d references unknown restaurant %d", e.DishID, e.VariationID, e.RestaurantID)
}

// Index is a lookup table over a complete restaurant collection.
type Index struct {
	byID        map[int64]model.Restaurant
	fingerprint uint64
}

func NewIndex(list model.List[model.Restaurant]) (*Index, error) {
	if !list.Complete() {
		return nil, fmt.Errorf("%w: %d of %d restaurants loaded", ErrPartialCollection, len(list.Items), list.Total)
	}

	idx := &Index{byID: make(map[int64]model.Restaurant, len(list.Items))}
	for _, r := range list.Items {
		idx.byID[r.ID] = r
	}

	ids := make([]int64, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	d := xxhash.New()
	for _, id := range ids {
		r := idx.byID[id]
		_, _ = d.WriteString(strconv.FormatInt(id, 10))
		_, _ = d.WriteString("\x00" + r.Name + "\x00" + r.Address + "\x01")
	}
	idx.fingerprint = d.Sum64()
	return idx, nil
}

func (i *Index) Lookup(id int64) (model.Restaurant, bool) {
	r, ok := i.byID[id]
	return r, ok
}

func (i *Index) Len() int { return len(i.byID) }

// Fingerprint identifies the collection contents independently of order.
func (i *Index) Fingerprint() uint64 { return i.fingerprint }

// ResolveDishVariations returns dish with every variation extended by its
// restaurant name and address. Variation order is preserved. When a
// variation references a restaurant missing from the index, a
// *DanglingReferenceError is returned and no resolved dish.
func ResolveDishVariations(dish model.Dish, restaurants *Index) (model.ResolvedDish, error) {
	if restaurants == nil {
		return model.ResolvedDish{}, fmt.Errorf("%w: no restaurants loaded", ErrPartialCollection)
	}

	vars := make([]model.ResolvedVariation, 0, len(dish.Variations))
	for _, v := range dish.Variations {
		r, ok := restaurants.Lookup(v.RestaurantID)
		if !ok {
			return model.ResolvedDish{}, &DanglingReferenceError{
				DishID:       dish.ID,
				VariationID:  v.ID,
				RestaurantID: v.RestaurantID,
			}
		}
		vars = append(vars, model.ResolvedVariation{
			RawVariation:      v,
			RestaurantName:    r.Name,
			RestaurantAddress: r.Address,
		})
	}

	return model.ResolvedDish{Dish: dish, Variations: vars}, nil
}
