package sim

import "time"

// Vehicle is a simulated vehicle on the grid.
type Vehicle struct {
	ID        string    `json:"id"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Speed     float64   `json:"speed"` // cells per second
	DestX     int       `json:"dest_x"`
	DestY     int       `json:"dest_y"`
	CreatedAt time.Time `json:"created_at"`
}

// Arrived reports whether the vehicle sits on its destination.
func (v *Vehicle) Arrived() bool { return v.X == v.DestX && v.Y == v.DestY }
