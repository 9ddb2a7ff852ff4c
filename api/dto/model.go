package dto

import "time"

// CacheEntry is the inspection view of one cached query.
type CacheEntry struct {
	Key         string    `json:"key"`
	Entity      string    `json:"entity"`
	HasData     bool      `json:"hasData"`
	Stale       bool      `json:"stale"`
	Fetching    bool      `json:"fetching"`
	Generation  uint64    `json:"generation"`
	Subscribers int       `json:"subscribers"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
	Error       string    `json:"error,omitempty"`
}

type CacheEntries struct {
	Entries []CacheEntry `json:"entries"`
}

type InvalidateResponse struct {
	Entity string   `json:"entity"`
	Keys   []string `json:"keys"`
}

type MutationResponse struct {
	Kind        string   `json:"kind"`
	Entity      string   `json:"entity"`
	Invalidated []string `json:"invalidated"`
}

// ErrorResponse is the body of every non-2xx API answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`

	// set for backend failures
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Status int    `json:"status,omitempty"`

	// set for schema violations
	Schema   string `json:"schema,omitempty"`
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`

	// set for dangling references
	DishID       int64 `json:"dishId,omitempty"`
	RestaurantID int64 `json:"restaurantId,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
