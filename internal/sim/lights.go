package sim

import "routeiq/internal/grid"

// Phase durations in ticks (one tick per simulated second).
const (
	GreenDuration  = 30
	YellowDuration = 5
	RedDuration    = 25
)

// LightCycle is a fixed-duration traffic light: green, yellow, red, repeat.
type LightCycle struct {
	state   grid.LightState
	elapsed int // ticks spent in the current state
}

func NewLightCycle() *LightCycle { return &LightCycle{state: grid.LightGreen} }

// Tick advances the timer by one second and changes phase when it runs out.
func (l *LightCycle) Tick() {
	l.elapsed++
	switch l.state {
	case grid.LightGreen:
		if l.elapsed >= GreenDuration {
			l.state, l.elapsed = grid.LightYellow, 0
		}
	case grid.LightYellow:
		if l.elapsed >= YellowDuration {
			l.state, l.elapsed = grid.LightRed, 0
		}
	case grid.LightRed:
		if l.elapsed >= RedDuration {
			l.state, l.elapsed = grid.LightGreen, 0
		}
	}
}

func (l *LightCycle) State() grid.LightState { return l.state }
func (l *LightCycle) Elapsed() int           { return l.elapsed }
