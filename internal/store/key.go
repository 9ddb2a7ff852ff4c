package store

import (
	"fmt"
	"net/url"

	"aur-admin-data/internal/entity"
)

// Param is one query parameter of a cache key.
type Param struct {
	Name  string
	Value any
}

func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Key addresses one cached query result: an entity name plus a canonical
// encoding of its parameters. Keys built from the same name/value pairs are
// equal regardless of the order the params were supplied in, so Key can be
// used directly as a map key.
type Key struct {
	Entity entity.Name
	params string
}

// NewKey builds a canonical key. Params are sorted by name; a repeated name
// keeps its last value.
func NewKey(name entity.Name, params ...Param) Key {
	if len(params) == 0 {
		return Key{Entity: name}
	}
	values := make(url.Values, len(params))
	for _, p := range params {
		values.Set(p.Name, fmt.Sprint(p.Value))
	}
	// url.Values.Encode sorts by key
	return Key{Entity: name, params: values.Encode()}
}

func (k Key) String() string {
	if k.params == "" {
		return string(k.Entity)
	}
	return string(k.Entity) + "?" + k.params
}
