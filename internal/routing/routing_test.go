package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeiq/internal/grid"
	"routeiq/internal/sim"
)

func TestOptimal_CachesUntilBlockedCellsChange(t *testing.T) {
	pf := sim.NewPathFinder(20, 20, nil)
	s := New(pf, time.Minute, nil)
	ctx := context.Background()
	req := Request{From: grid.Point{X: 0, Y: 0}, To: grid.Point{X: 4, Y: 0}}

	first, err := s.Optimal(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 4, first.Length)
	assert.Len(t, first.Path, 5)

	second, err := s.Optimal(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Path, second.Path)

	pf.Block(grid.Point{X: 2, Y: 0})
	third, err := s.Optimal(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotContains(t, third.Path, grid.Point{X: 2, Y: 0})
	assert.Equal(t, 6, third.Length)
}

func TestOptimal_Errors(t *testing.T) {
	pf := sim.NewPathFinder(20, 20, nil)
	s := New(pf, 0, nil)
	ctx := context.Background()

	_, err := s.Optimal(ctx, Request{From: grid.Point{X: -1, Y: 0}, To: grid.Point{X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = s.Optimal(ctx, Request{From: grid.Point{X: 0, Y: 0}, To: grid.Point{X: 1, Y: 20}})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	for y := 0; y < 20; y++ {
		pf.Block(grid.Point{X: 10, Y: y})
	}
	_, err = s.Optimal(ctx, Request{From: grid.Point{X: 0, Y: 0}, To: grid.Point{X: 19, Y: 0}})
	assert.ErrorIs(t, err, ErrNoPath)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Optimal(cctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
