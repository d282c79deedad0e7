package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeiq/internal/grid"
)

// assertContiguous checks every step moves exactly one cell orthogonally.
func assertContiguous(t *testing.T, path []grid.Point) {
	t.Helper()
	for i := 1; i < len(path); i++ {
		assert.Equal(t, 1, manhattan(path[i-1], path[i]), "gap between %v and %v", path[i-1], path[i])
	}
}

func TestPathFinder_BasicPath(t *testing.T) {
	pf := NewPathFinder(20, 20, nil)
	p := pf.Path(0, 0, 19, 19)
	require.Len(t, p, 39)
	assert.Equal(t, grid.Point{X: 0, Y: 0}, p[0])
	assert.Equal(t, grid.Point{X: 19, Y: 19}, p[len(p)-1])
	assertContiguous(t, p)
}

func TestPathFinder_SameCell(t *testing.T) {
	pf := NewPathFinder(5, 5, nil)
	assert.Equal(t, []grid.Point{{X: 2, Y: 2}}, pf.Path(2, 2, 2, 2))
}

func TestPathFinder_WithBlockersGap(t *testing.T) {
	blocked := make(map[grid.Point]bool)
	for y := 0; y < 20; y++ {
		if y != 10 {
			blocked[grid.Point{X: 10, Y: y}] = true
		}
	}
	pf := NewPathFinder(20, 20, blocked)
	p := pf.Path(0, 10, 19, 10)
	require.NotEmpty(t, p)
	assert.Contains(t, p, grid.Point{X: 10, Y: 10})
	assertContiguous(t, p)
	for _, pt := range p {
		assert.False(t, pf.IsBlocked(pt.X, pt.Y), "path crosses blocked %v", pt)
	}
}

func TestPathFinder_NoPath(t *testing.T) {
	pf := NewPathFinder(20, 20, nil)
	for y := 0; y < 20; y++ {
		pf.Block(grid.Point{X: 10, Y: y})
	}
	assert.Nil(t, pf.Path(0, 0, 19, 19))
}

func TestPathFinder_InvalidEndpoints(t *testing.T) {
	pf := NewPathFinder(20, 20, map[grid.Point]bool{{X: 3, Y: 3}: true})
	assert.Nil(t, pf.Path(-1, 0, 5, 5))
	assert.Nil(t, pf.Path(0, 0, 20, 5))
	assert.Nil(t, pf.Path(0, 0, 3, 3), "blocked goal")
}

func TestPathFinder_BlockUnblockGeneration(t *testing.T) {
	pf := NewPathFinder(20, 20, nil)
	g0 := pf.Generation()
	pt := grid.Point{X: 4, Y: 4}

	assert.True(t, pf.Block(pt))
	assert.False(t, pf.Block(pt))
	g1 := pf.Generation()
	assert.NotEqual(t, g0, g1)
	assert.Equal(t, []grid.Point{pt}, pf.Blocked())

	assert.True(t, pf.Unblock(pt))
	assert.False(t, pf.Unblock(pt))
	assert.NotEqual(t, g1, pf.Generation())
	assert.Empty(t, pf.Blocked())
}

func TestPathFinder_PerfUnder50ms(t *testing.T) {
	pf := NewPathFinder(20, 20, nil)
	start := time.Now()
	_ = pf.Path(0, 0, 19, 19)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
