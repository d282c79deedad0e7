// Package routing answers optimal-route queries against the live grid.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"routeiq/internal/grid"
	"routeiq/internal/metrics"
	"routeiq/internal/sim"
)

var (
	ErrNoPath      = errors.New("no route")
	ErrOutOfBounds = sim.ErrOutOfBounds
)

type Request struct {
	From grid.Point `json:"from"`
	To   grid.Point `json:"to"`
}

type Result struct {
	Path   []grid.Point `json:"path"`
	Length int          `json:"length"` // steps, len(Path)-1
	Cached bool         `json:"cached"`
}

// Service caches routes per blocked-cell generation so an incident
// invalidates every cached answer at once.
type Service struct {
	paths   *sim.PathFinder
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func New(paths *sim.PathFinder, ttl time.Duration, m *metrics.Metrics) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		paths:   paths,
		cache:   cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func (s *Service) Optimal(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, p := range []grid.Point{req.From, req.To} {
		if !s.paths.InBounds(p.X, p.Y) {
			s.metrics.RouteLookup("invalid")
			return Result{}, fmt.Errorf("(%d,%d): %w", p.X, p.Y, ErrOutOfBounds)
		}
	}

	key := cacheKey(req, s.paths.Generation())
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RouteLookup("hit")
		res := v.(Result)
		res.Cached = true
		return res, nil
	}

	path := s.paths.Path(req.From.X, req.From.Y, req.To.X, req.To.Y)
	if len(path) == 0 {
		s.metrics.RouteLookup("no_path")
		return Result{}, ErrNoPath
	}
	res := Result{Path: path, Length: len(path) - 1}
	s.cache.SetDefault(key, res)
	s.metrics.RouteLookup("miss")
	return res, nil
}

func cacheKey(req Request, gen uint64) string {
	return fmt.Sprintf("%d,%d>%d,%d@%d", req.From.X, req.From.Y, req.To.X, req.To.Y, gen)
}
