package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"routeiq/internal/grid"
	"routeiq/internal/logging"
	"routeiq/internal/metrics"
	"routeiq/internal/notify"
)

var (
	ErrOutOfBounds     = errors.New("cell out of bounds")
	ErrVehicleCapacity = errors.New("vehicle capacity reached")
)

// DefaultMaxVehicles bounds the fleet when Config.MaxVehicles is unset.
const DefaultMaxVehicles = 500

type Config struct {
	Width           int
	Height          int
	TickInterval    time.Duration
	InitialVehicles int
	// MaxVehicles caps the fleet; each tick runs one path search per vehicle.
	MaxVehicles int
}

// LightView is the published state of one intersection light.
type LightView struct {
	grid.Point
	State   grid.LightState `json:"state"`
	Elapsed int             `json:"elapsed"`
}

// Snapshot is a point-in-time copy of the simulation.
type Snapshot struct {
	Tick     uint64       `json:"tick"`
	At       time.Time    `json:"at"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Vehicles []Vehicle    `json:"vehicles"`
	Lights   []LightView  `json:"lights"`
	Blocked  []grid.Point `json:"blocked"`
}

// IncidentUpdate is published whenever a cell is blocked or cleared.
type IncidentUpdate struct {
	grid.Point
	Cleared bool `json:"cleared"`
}

// Engine drives the lights and vehicles on a fixed tick.
type Engine struct {
	cfg      Config
	grid     *grid.Grid
	paths    *PathFinder
	vehicles *VehicleManager
	pub      notify.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger

	spawnMu sync.Mutex // serializes the capacity check with the insert

	mu     sync.Mutex // guards the fields below and vehicle positions
	lights map[grid.Point]*LightCycle
	order  []grid.Point
	occ    *Occupancy
	tick   uint64
	last   time.Time
}

func NewEngine(cfg Config, pub notify.Publisher, m *metrics.Metrics) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if pub == nil {
		pub = notify.Noop{}
	}
	if cfg.MaxVehicles <= 0 {
		cfg.MaxVehicles = DefaultMaxVehicles
	}
	cfg.InitialVehicles = min(cfg.InitialVehicles, cfg.MaxVehicles)
	g := grid.NewGrid(cfg.Width, cfg.Height)
	e := &Engine{
		cfg:      cfg,
		grid:     g,
		paths:    NewPathFinder(cfg.Width, cfg.Height, nil),
		vehicles: NewVehicleManager(),
		pub:      pub,
		metrics:  m,
		log:      logging.Component("sim"),
		lights:   make(map[grid.Point]*LightCycle),
		occ:      NewOccupancy(),
		last:     time.Now().UTC(),
	}
	for _, it := range g.Intersections() {
		e.lights[it.Point] = NewLightCycle()
		e.order = append(e.order, it.Point)
	}
	if cfg.InitialVehicles > 0 {
		e.vehicles.Spawn(cfg.InitialVehicles, cfg.Width, cfg.Height)
	}
	return e
}

func (e *Engine) Grid() *grid.Grid          { return e.grid }
func (e *Engine) PathFinder() *PathFinder   { return e.paths }
func (e *Engine) Vehicles() *VehicleManager { return e.vehicles }

// Spawn adds n vehicles, or none when that would exceed MaxVehicles.
func (e *Engine) Spawn(n int) ([]string, error) {
	e.spawnMu.Lock()
	defer e.spawnMu.Unlock()
	if have := e.vehicles.Count(); have+n > e.cfg.MaxVehicles {
		return nil, fmt.Errorf("spawn %d with %d of %d active: %w", n, have, e.cfg.MaxVehicles, ErrVehicleCapacity)
	}
	return e.vehicles.Spawn(n, e.cfg.Width, e.cfg.Height), nil
}

func (e *Engine) MaxVehicles() int { return e.cfg.MaxVehicles }

func (e *Engine) Despawn(ids ...string) int {
	return e.vehicles.Despawn(ids...)
}

// SetIncident blocks the cell, or clears it when cleared is true. It reports
// whether the blocked set changed.
func (e *Engine) SetIncident(ctx context.Context, pt grid.Point, cleared bool) (bool, error) {
	if !e.grid.IsValid(pt.X, pt.Y) {
		return false, fmt.Errorf("incident at (%d,%d): %w", pt.X, pt.Y, ErrOutOfBounds)
	}
	var changed bool
	if cleared {
		changed = e.paths.Unblock(pt)
	} else {
		changed = e.paths.Block(pt)
	}
	if changed {
		e.log.Info("sim.incident", "x", pt.X, "y", pt.Y, "cleared", cleared)
		e.pub.Publish(ctx, notify.TopicIncident, IncidentUpdate{Point: pt, Cleared: cleared})
	}
	return changed, nil
}

// Step advances the simulation by one tick and publishes the result.
func (e *Engine) Step(ctx context.Context) Snapshot {
	vs := e.vehicles.List()
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })

	e.mu.Lock()
	states := make(map[grid.Point]grid.LightState, len(e.lights))
	for pt, l := range e.lights {
		l.Tick()
		states[pt] = l.State()
	}
	moved := MoveOneTick(vs, e.paths, states, e.occ, nil)
	e.tick++
	e.last = time.Now().UTC()
	snap := e.snapshotLocked(vs)
	e.mu.Unlock()

	e.metrics.Tick(len(snap.Vehicles), len(snap.Blocked))
	e.log.Debug("sim.tick", "tick", snap.Tick, "vehicles", len(snap.Vehicles), "moved", moved)
	e.pub.Publish(ctx, notify.TopicSnapshot, snap)
	return snap
}

// Run ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("sim.starting", "interval", e.cfg.TickInterval.String(), "width", e.cfg.Width, "height", e.cfg.Height)
	t := time.NewTicker(e.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("sim.stopped", "tick", e.currentTick())
			return nil
		case <-t.C:
			e.Step(ctx)
		}
	}
}

// Snapshot returns the current state without advancing it.
func (e *Engine) Snapshot() Snapshot {
	vs := e.vehicles.List()
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(vs)
}

func (e *Engine) currentTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

func (e *Engine) snapshotLocked(vs []*Vehicle) Snapshot {
	snap := Snapshot{
		Tick:     e.tick,
		At:       e.last,
		Width:    e.cfg.Width,
		Height:   e.cfg.Height,
		Vehicles: make([]Vehicle, 0, len(vs)),
		Lights:   make([]LightView, 0, len(e.order)),
		Blocked:  e.paths.Blocked(),
	}
	for _, v := range vs {
		snap.Vehicles = append(snap.Vehicles, *v)
	}
	for _, pt := range e.order {
		l := e.lights[pt]
		snap.Lights = append(snap.Lights, LightView{Point: pt, State: l.State(), Elapsed: l.Elapsed()})
	}
	return snap
}
