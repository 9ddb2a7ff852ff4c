// Package notify delivers user-facing notifications about finished
// mutations. The mutation dispatcher emits Events; Sinks decide where they go.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"aur-admin-data/internal/entity"
	"aur-admin-data/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"telegram-alerts-go/alert"
)

type Severity string

const (
	Success Severity = "success"
	Error   Severity = "error"
)

type Event struct {
	ID       uuid.UUID
	Severity Severity
	Summary  string
	Detail   string
	// Life is how long a toast stays on screen.
	Life   time.Duration
	Entity entity.Name
	Kind   string
	At     time.Time
}

func NewEvent(sev Severity, summary, detail string, life time.Duration) Event {
	return Event{
		ID:       uuid.New(),
		Severity: sev,
		Summary:  summary,
		Detail:   detail,
		Life:     life,
		At:       time.Now(),
	}
}

type eventJSON struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail"`
	LifeMs   int64  `json:"life"`
	Entity   string `json:"entity,omitempty"`
	Kind     string `json:"kind,omitempty"`
	At       string `json:"at"`
}

// MarshalJSON encodes Life in milliseconds, the unit toast widgets expect.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:       e.ID.String(),
		Severity: string(e.Severity),
		Summary:  e.Summary,
		Detail:   e.Detail,
		LifeMs:   e.Life.Milliseconds(),
		Entity:   string(e.Entity),
		Kind:     e.Kind,
		At:       e.At.UTC().Format(time.RFC3339Nano),
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	at, err := time.Parse(time.RFC3339Nano, w.At)
	if err != nil {
		return err
	}
	*e = Event{
		ID:       id,
		Severity: Severity(w.Severity),
		Summary:  w.Summary,
		Detail:   w.Detail,
		Life:     time.Duration(w.LifeMs) * time.Millisecond,
		Entity:   entity.Name(w.Entity),
		Kind:     w.Kind,
		At:       at,
	}
	return nil
}

type Sink interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

///////////////////////////////////////////////////////////
/// Log
///////////////////////////////////////////////////////////

// LogSink writes every event to the global zap logger.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Notify(_ context.Context, ev Event) error {
	fields := []any{"id", ev.ID.String(), "entity", ev.Entity, "kind", ev.Kind, "detail", ev.Detail}
	if ev.Severity == Error {
		zap.S().Warnw(ev.Summary, fields...)
		return nil
	}
	zap.S().Infow(ev.Summary, fields...)
	return nil
}

///////////////////////////////////////////////////////////
/// Fan-out
///////////////////////////////////////////////////////////

// Multi delivers an event to every sink. A failing sink does not stop the
// others; all failures are returned joined.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		err := s.Notify(ctx, ev)
		metrics.RecordNotification(s.Name(), err)
		if err != nil {
			zap.S().Errorw(alert.Prefix("notification failed"), "sink", s.Name(), "id", ev.ID.String(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
