package sim

import "routeiq/internal/grid"

// Occupancy tracks cells reserved during a tick so two vehicles never
// move into the same cell.
type Occupancy struct{ cells map[grid.Point]bool }

func NewOccupancy() *Occupancy { return &Occupancy{cells: make(map[grid.Point]bool)} }

func (o *Occupancy) Reset() { clear(o.cells) }

// TryReserve claims a cell for this tick. It fails if already claimed.
func (o *Occupancy) TryReserve(pt grid.Point) bool {
	if o.cells[pt] {
		return false
	}
	o.cells[pt] = true
	return true
}

// MoveOneTick moves each vehicle at most one cell along its route.
// A vehicle waits when the next cell is an intersection showing red or
// yellow, or when another vehicle already claimed that cell this tick.
// dests overrides a vehicle's own destination by id and may be nil.
// It returns the number of vehicles that moved.
func MoveOneTick(vehicles []*Vehicle, pf *PathFinder, intersections map[grid.Point]grid.LightState, occ *Occupancy, dests map[string]grid.Point) int {
	if occ == nil {
		occ = NewOccupancy()
	} else {
		occ.Reset()
	}
	moved := 0
	for _, v := range vehicles {
		d, ok := dests[v.ID]
		if !ok {
			d = grid.Point{X: v.DestX, Y: v.DestY}
		}
		path := pf.Path(v.X, v.Y, d.X, d.Y)
		if len(path) <= 1 {
			continue
		}
		next := path[1]
		if state, ok := intersections[next]; ok && state.Stops() {
			continue
		}
		if !occ.TryReserve(next) {
			continue
		}
		v.X, v.Y = next.X, next.Y
		moved++
	}
	return moved
}
