package web

import (
	"html/template"
	"time"

	"routeiq/internal/grid"
	"routeiq/internal/sim"
)

// ShellData is what the shell template receives on every page.
type ShellData struct {
	Title      string
	Stylesheet string
	Content    template.HTML
}

// StatusData feeds the status page.
type StatusData struct {
	Tick         uint64
	At           time.Time
	Width        int
	Height       int
	VehicleCount int
	Vehicles     []sim.Vehicle // at most the first StatusVehicleLimit
	Lights       []sim.LightView
	Blocked      []grid.Point
}

const StatusVehicleLimit = 25

func NewStatusData(s sim.Snapshot) StatusData {
	vs := s.Vehicles
	if len(vs) > StatusVehicleLimit {
		vs = vs[:StatusVehicleLimit]
	}
	return StatusData{
		Tick:         s.Tick,
		At:           s.At,
		Width:        s.Width,
		Height:       s.Height,
		VehicleCount: len(s.Vehicles),
		Vehicles:     vs,
		Lights:       s.Lights,
		Blocked:      s.Blocked,
	}
}
