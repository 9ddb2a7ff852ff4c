// Package entity enumerates the logical record types the panel caches.
// A cache key is always scoped to exactly one Name, and invalidation
// matches names exactly, never by prefix.
package entity

import "fmt"

type Name string

const (
	Dish       Name = "dish"
	Review     Name = "review"
	Tag        Name = "tag"
	Restaurant Name = "restaurant"
	Category   Name = "category"
)

var all = []Name{Dish, Review, Tag, Restaurant, Category}

// All returns every known entity name in declaration order.
func All() []Name {
	out := make([]Name, len(all))
	copy(out, all)
	return out
}

func (n Name) Valid() bool {
	for _, known := range all {
		if n == known {
			return true
		}
	}
	return false
}

func (n Name) String() string { return string(n) }

// Parse converts s into a Name, rejecting anything outside the enumeration.
func Parse(s string) (Name, error) {
	n := Name(s)
	if !n.Valid() {
		return "", fmt.Errorf("unknown entity %q", s)
	}
	return n, nil
}
