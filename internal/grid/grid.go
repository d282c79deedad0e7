// Package grid models the city grid the traffic simulation runs on.
package grid

// LightState is the state of a traffic light at an intersection.
type LightState string

const (
	LightRed    LightState = "red"
	LightYellow LightState = "yellow"
	LightGreen  LightState = "green"
)

// Stops reports whether a vehicle must wait before entering the cell.
func (s LightState) Stops() bool { return s == LightRed || s == LightYellow }

// Point is a cell coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Intersection is a major intersection location in the grid.
type Intersection struct {
	Point
	LightState LightState `json:"light"`
}

// Grid is the city grid and its intersection layout.
type Grid struct {
	Width         int
	Height        int
	intersections []Intersection
}

// DefaultIntersections are the four major intersections of a 20x20 grid.
var DefaultIntersections = []Point{{5, 5}, {5, 15}, {15, 5}, {15, 15}}

// NewGrid builds a width x height grid and seeds the default intersections
// that fall inside it, all starting red.
func NewGrid(width, height int) *Grid {
	g := &Grid{Width: width, Height: height}
	for _, p := range DefaultIntersections {
		if g.IsValid(p.X, p.Y) {
			g.intersections = append(g.intersections, Intersection{Point: p, LightState: LightRed})
		}
	}
	return g
}

func (g *Grid) NumCells() int {
	if g.Width <= 0 || g.Height <= 0 {
		return 0
	}
	return g.Width * g.Height
}

// IsValid reports whether (x,y) is inside the grid bounds.
func (g *Grid) IsValid(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// ToID maps (x,y) to a linear cell id, or -1 when out of bounds.
func (g *Grid) ToID(x, y int) int {
	if !g.IsValid(x, y) {
		return -1
	}
	return y*g.Width + x
}

// FromID maps a linear cell id back to (x,y), or (-1,-1) when invalid.
func (g *Grid) FromID(id int) (int, int) {
	if id < 0 || id >= g.NumCells() {
		return -1, -1
	}
	return id % g.Width, id / g.Width
}

// Intersections returns a copy of the seeded intersections.
func (g *Grid) Intersections() []Intersection {
	out := make([]Intersection, len(g.intersections))
	copy(out, g.intersections)
	return out
}
