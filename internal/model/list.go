package model

import "fmt"

// List is the envelope every list endpoint returns. Total counts all
// matching records on the server and is independent of len(Items).
type List[T any] struct {
	Items []T `json:"list"`
	Total int `json:"total"`
}

// Complete reports whether Items holds the whole server-side collection.
func (l List[T]) Complete() bool {
	return len(l.Items) >= l.Total
}

// ListParams is the stable query shape shared by all list endpoints.
type ListParams struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
}

// FullCollectionLimit is the page size used when a whole collection is
// needed in one response.
const FullCollectionLimit = 99999999

// FullCollection requests every record of an entity in one page.
func FullCollection() ListParams {
	return ListParams{Offset: 0, Limit: FullCollectionLimit, Search: ""}
}

func (p ListParams) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("offset must be >= 0, got %d", p.Offset)
	}
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be > 0, got %d", p.Limit)
	}
	return nil
}
