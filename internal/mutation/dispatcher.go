package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/metrics"
	"aur-admin-data/internal/notify"
	"aur-admin-data/internal/store"
	"aur-admin-data/internal/transport"

	"go.uber.org/zap"
)

const (
	pathDish         = "admin/dish"
	pathReviewStatus = "admin/user/review"
)

// Result is the outcome of one mutation, independent of how it is reported.
type Result struct {
	Kind        Kind
	Entity      entity.Name
	Label       string
	Payload     json.RawMessage
	Invalidated []store.Key
	Err         error
}

func (r Result) OK() bool { return r.Err == nil }

type Dispatcher struct {
	client transport.Client
	store  *store.Store
	sink   notify.Sink
	life   time.Duration
}

// NewDispatcher wires a dispatcher. A nil sink logs notifications only.
func NewDispatcher(client transport.Client, s *store.Store, sink notify.Sink, life time.Duration) *Dispatcher {
	if sink == nil {
		sink = notify.LogSink{}
	}
	return &Dispatcher{client: client, store: s, sink: sink, life: life}
}

// Mutate performs m with a single transport call. On success every cached
// entry of m's entity is invalidated before the success notification goes
// out; on failure the cache is untouched and an error notification is sent.
// The returned error is Result.Err.
func (d *Dispatcher) Mutate(ctx context.Context, m Mutation) (Result, error) {
	res := d.Apply(ctx, m)

	ev := Notification(res, d.life)
	if err := d.sink.Notify(ctx, ev); err != nil {
		zap.S().Warnw("notification not delivered", "kind", res.Kind, "id", ev.ID.String(), "error", err)
	}
	return res, res.Err
}

// Apply performs m and invalidates on success without notifying anyone.
func (d *Dispatcher) Apply(ctx context.Context, m Mutation) (res Result) {
	if m == nil {
		return Result{Err: fmt.Errorf("%w: nil mutation", ErrUnknownKind)}
	}
	res = Result{Kind: m.Kind(), Entity: m.Entity(), Label: m.Label()}
	defer func() {
		metrics.RecordMutation(string(res.Kind), res.Err)
	}()

	if err := validate(m); err != nil {
		res.Err = err
		return res
	}

	var (
		payload json.RawMessage
		err     error
	)
	switch m := m.(type) {
	case CreateDish:
		payload, err = d.client.Post(ctx, pathDish, m.Dish)
	case UpdateDish:
		payload, err = d.client.Put(ctx, pathDish, m.Dish)
	case ChangeReviewStatus:
		payload, err = d.client.Post(ctx, pathReviewStatus, m.Change)
	}
	if err != nil {
		res.Err = err
		zap.S().Warnw("mutation failed", "kind", res.Kind, "entity", res.Entity, "error", err)
		return res
	}

	res.Payload = payload
	res.Invalidated = d.store.InvalidateEntity(res.Entity)
	metrics.RecordInvalidation(string(res.Entity), len(res.Invalidated))
	zap.S().Infow("cache invalidated", "entity", res.Entity, "keys", len(res.Invalidated), "kind", res.Kind)
	return res
}

// Notification builds the user-facing event for res.
func Notification(res Result, life time.Duration) notify.Event {
	var ev notify.Event
	if res.OK() {
		ev = notify.NewEvent(notify.Success, "Success", successText(res), life)
	} else {
		ev = notify.NewEvent(notify.Error, failureText(res.Kind), res.Err.Error(), life)
	}
	ev.Entity = res.Entity
	ev.Kind = string(res.Kind)
	return ev
}

func successText(res Result) string {
	switch res.Kind {
	case KindCreateDish:
		return fmt.Sprintf("Dish %s created", res.Label)
	case KindUpdateDish:
		return fmt.Sprintf("Dish %s updated", res.Label)
	case KindChangeReviewStatus:
		return fmt.Sprintf("Review status for user %s changed", res.Label)
	default:
		return "Done"
	}
}

func failureText(k Kind) string {
	switch k {
	case KindCreateDish:
		return "Could not create dish"
	case KindUpdateDish:
		return "Could not update dish"
	case KindChangeReviewStatus:
		return "Could not change review status"
	default:
		return "Could not apply change"
	}
}
