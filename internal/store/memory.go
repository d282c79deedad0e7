package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an EventStore that lives only as long as the process.
type Memory struct {
	mu     sync.RWMutex
	events []Event // append order
	byID   map[string]int
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

func (m *Memory) Append(ctx context.Context, ev Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if !ev.Kind.Valid() {
		return Event{}, fmt.Errorf("append: invalid kind %q", ev.Kind)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byID[ev.ID]; dup {
		return Event{}, fmt.Errorf("append: duplicate id %s", ev.ID)
	}
	m.byID[ev.ID] = len(m.events)
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *Memory) List(ctx context.Context, kind Kind, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampLimit(limit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, 0, min(limit, len(m.events)))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if kind == "" || m.events[i].Kind == kind {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return m.events[i], nil
}

func (m *Memory) OpenIncidents(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type cell struct{ x, y int }
	seen := make(map[cell]bool)
	var out []Event
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.Kind != KindIncident {
			continue
		}
		c := cell{ev.X, ev.Y}
		if seen[c] {
			continue
		}
		seen[c] = true
		if !ev.Cleared() {
			out = append(out, ev)
		}
	}
	return out, nil
}
