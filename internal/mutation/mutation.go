// Package mutation performs admin writes and keeps the query cache coherent
// with them: a successful write marks every cached entry of the written
// entity stale, a failed one leaves the cache alone.
package mutation

import (
	"errors"
	"fmt"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/model"
)

var (
	ErrUnknownKind = errors.New("unknown mutation kind")
	// ErrInvalid marks a mutation rejected before any transport call.
	ErrInvalid = errors.New("invalid mutation")
)

type Kind string

const (
	KindCreateDish         Kind = "create-dish"
	KindUpdateDish         Kind = "update-dish"
	KindChangeReviewStatus Kind = "change-review-status"
)

// Mutation is one of CreateDish, UpdateDish or ChangeReviewStatus.
type Mutation interface {
	Kind() Kind
	Entity() entity.Name
	// Label is the human readable identifier used in notifications.
	Label() string
	sealed()
}

type CreateDish struct {
	Dish model.DishInput
}

func (CreateDish) Kind() Kind          { return KindCreateDish }
func (CreateDish) Entity() entity.Name { return entity.Dish }
func (m CreateDish) Label() string     { return m.Dish.Name }
func (CreateDish) sealed()             {}

type UpdateDish struct {
	Dish model.DishInput
}

func (UpdateDish) Kind() Kind          { return KindUpdateDish }
func (UpdateDish) Entity() entity.Name { return entity.Dish }
func (m UpdateDish) Label() string     { return m.Dish.Name }
func (UpdateDish) sealed()             {}

type ChangeReviewStatus struct {
	Change model.ReviewStatusChange
}

func (ChangeReviewStatus) Kind() Kind          { return KindChangeReviewStatus }
func (ChangeReviewStatus) Entity() entity.Name { return entity.Review }
func (m ChangeReviewStatus) Label() string     { return fmt.Sprint(m.Change.UserID) }
func (ChangeReviewStatus) sealed()             {}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCreateDish, KindUpdateDish, KindChangeReviewStatus:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func validate(m Mutation) error {
	switch m := m.(type) {
	case CreateDish:
		if m.Dish.Name == "" {
			return fmt.Errorf("%w: dish name is required", ErrInvalid)
		}
	case UpdateDish:
		if m.Dish.ID <= 0 {
			return fmt.Errorf("%w: dish id is required", ErrInvalid)
		}
		if m.Dish.Name == "" {
			return fmt.Errorf("%w: dish name is required", ErrInvalid)
		}
	case ChangeReviewStatus:
		if m.Change.ReviewID <= 0 || m.Change.UserID <= 0 {
			return fmt.Errorf("%w: review id and user id are required", ErrInvalid)
		}
		if m.Change.Status == "" {
			return fmt.Errorf("%w: review status is required", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}
	return nil
}
