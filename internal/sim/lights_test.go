package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"routeiq/internal/grid"
)

func tickN(l *LightCycle, n int) {
	for i := 0; i < n; i++ {
		l.Tick()
	}
}

func TestLightCycle_Timings(t *testing.T) {
	l := NewLightCycle()
	assert.Equal(t, grid.LightGreen, l.State())
	assert.Equal(t, 0, l.Elapsed())

	tickN(l, GreenDuration-1)
	assert.Equal(t, grid.LightGreen, l.State())
	tickN(l, 1)
	assert.Equal(t, grid.LightYellow, l.State())
	assert.Equal(t, 0, l.Elapsed())

	tickN(l, YellowDuration)
	assert.Equal(t, grid.LightRed, l.State())
	assert.Equal(t, 0, l.Elapsed())

	tickN(l, RedDuration)
	assert.Equal(t, grid.LightGreen, l.State())
	assert.Equal(t, 0, l.Elapsed())

	tickN(l, 10)
	assert.Equal(t, grid.LightGreen, l.State())
	assert.Equal(t, 10, l.Elapsed())
}

func TestLightCycle_FullCycleLength(t *testing.T) {
	l := NewLightCycle()
	tickN(l, GreenDuration+YellowDuration+RedDuration)
	assert.Equal(t, grid.LightGreen, l.State())
	assert.Equal(t, 0, l.Elapsed())
}
