// Package store records traffic events reported to the API.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("event not found")

type Kind string

const (
	KindVehicle  Kind = "vehicle"
	KindIncident Kind = "incident"
)

func (k Kind) Valid() bool { return k == KindVehicle || k == KindIncident }

type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventStore persists traffic events. List returns newest first; an empty
// kind matches every kind and a non-positive limit means DefaultLimit.
type EventStore interface {
	Append(ctx context.Context, ev Event) (Event, error)
	List(ctx context.Context, kind Kind, limit int) ([]Event, error)
	Get(ctx context.Context, id string) (Event, error)
	// OpenIncidents returns the latest incident per cell that has not been
	// cleared, so blocked cells can be restored after a restart.
	OpenIncidents(ctx context.Context) ([]Event, error)
}

// IncidentPayload is the payload recorded with incident events.
type IncidentPayload struct {
	Cleared     bool   `json:"cleared"`
	Description string `json:"description,omitempty"`
}

// Cleared reports whether an incident event cleared its cell.
func (e Event) Cleared() bool {
	if e.Kind != KindIncident || len(e.Payload) == 0 {
		return false
	}
	var p IncidentPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return false
	}
	return p.Cleared
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}
