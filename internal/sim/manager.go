package sim

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// VehicleManager keeps the set of live vehicles in memory.
type VehicleManager struct {
	mu       sync.RWMutex
	vehicles map[string]*Vehicle
}

func NewVehicleManager() *VehicleManager {
	return &VehicleManager{vehicles: make(map[string]*Vehicle)}
}

// Spawn creates n vehicles at random positions and destinations within
// [0,width) x [0,height) and returns their ids.
func (m *VehicleManager) Spawn(n, width, height int) []string {
	if n <= 0 || width <= 0 || height <= 0 {
		return []string{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := &Vehicle{
			ID:        uuid.NewString(),
			X:         rand.IntN(width),
			Y:         rand.IntN(height),
			Speed:     1.0,
			DestX:     rand.IntN(width),
			DestY:     rand.IntN(height),
			CreatedAt: now,
		}
		m.vehicles[v.ID] = v
		ids = append(ids, v.ID)
	}
	return ids
}

// Add inserts a vehicle built by the caller. An empty ID gets a fresh one.
func (m *VehicleManager) Add(v *Vehicle) string {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.vehicles[v.ID] = v
	m.mu.Unlock()
	return v.ID
}

// Despawn removes the given vehicles and returns how many were present.
func (m *VehicleManager) Despawn(ids ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if _, ok := m.vehicles[id]; ok {
			delete(m.vehicles, id)
			removed++
		}
	}
	return removed
}

func (m *VehicleManager) Get(id string) (*Vehicle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok
}

func (m *VehicleManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vehicles)
}

// List returns the live vehicles in no particular order.
func (m *VehicleManager) List() []*Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		out = append(out, v)
	}
	return out
}
