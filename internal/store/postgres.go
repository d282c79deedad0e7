package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores events in the traffic_events table created by dbinit.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{DB: db} }

func (p *Postgres) Append(ctx context.Context, ev Event) (Event, error) {
	if !ev.Kind.Valid() {
		return Event{}, fmt.Errorf("append: invalid kind %q", ev.Kind)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	var payload *string
	if len(ev.Payload) > 0 {
		s := string(ev.Payload)
		payload = &s
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.DB.Exec(ctx, `
		insert into traffic_events (id, kind, x, y, payload, created_at)
		values ($1::uuid, $2, $3, $4, $5::jsonb, $6)
	`, ev.ID, string(ev.Kind), ev.X, ev.Y, payload, ev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Event{}, fmt.Errorf("append: duplicate id %s", ev.ID)
		}
		return Event{}, fmt.Errorf("append: %w", err)
	}
	return ev, nil
}

func (p *Postgres) List(ctx context.Context, kind Kind, limit int) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := p.DB.Query(ctx, `
		select id::text, kind, x, y, payload::text, created_at
		from traffic_events
		where ($1 = '' or kind = $1)
		order by created_at desc, id desc
		limit $2
	`, string(kind), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Event{}, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := p.DB.QueryRow(ctx, `
		select id::text, kind, x, y, payload::text, created_at
		from traffic_events where id = $1::uuid
	`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get: %w", err)
	}
	return ev, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		ev      Event
		kind    string
		payload *string
	)
	if err := row.Scan(&ev.ID, &kind, &ev.X, &ev.Y, &payload, &ev.CreatedAt); err != nil {
		return Event{}, err
	}
	ev.Kind = Kind(kind)
	if payload != nil {
		ev.Payload = []byte(*payload)
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func (p *Postgres) OpenIncidents(ctx context.Context) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := p.DB.Query(ctx, `
		select id::text, kind, x, y, payload::text, created_at
		from open_incidents
		order by y, x
	`)
	if err != nil {
		return nil, fmt.Errorf("open incidents: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("open incidents scan: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
