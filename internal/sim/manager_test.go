package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVehicleManager_SpawnAndUniqueness(t *testing.T) {
	m := NewVehicleManager()
	ids := m.Spawn(150, 20, 20)
	require.Len(t, ids, 150)

	seen := make(map[string]bool)
	for _, id := range ids {
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true

		v, ok := m.Get(id)
		require.True(t, ok)
		assert.True(t, v.X >= 0 && v.X < 20 && v.Y >= 0 && v.Y < 20)
		assert.True(t, v.DestX >= 0 && v.DestX < 20 && v.DestY >= 0 && v.DestY < 20)
		assert.Equal(t, 1.0, v.Speed)
	}
	assert.Equal(t, 150, m.Count())
}

func TestVehicleManager_Despawn(t *testing.T) {
	m := NewVehicleManager()
	ids := m.Spawn(10, 20, 20)
	assert.Equal(t, 5, m.Despawn(ids[:5]...))
	assert.Equal(t, 5, m.Count())
}

func TestVehicleManager_ListAndGetNotFound(t *testing.T) {
	m := NewVehicleManager()
	_, ok := m.Get("nope")
	assert.False(t, ok)

	m.Spawn(3, 2, 2)
	assert.Len(t, m.List(), 3)
}

func TestVehicleManager_DespawnEdgeCases(t *testing.T) {
	m := NewVehicleManager()
	ids := m.Spawn(2, 2, 2)

	assert.Equal(t, 1, m.Despawn(ids[0], "unknown", ids[0]))
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1, m.Despawn(ids[1]))
	assert.Equal(t, 0, m.Count())
	assert.Equal(t, 0, m.Despawn("still-unknown"))
}

func TestVehicleManager_SpawnZero(t *testing.T) {
	m := NewVehicleManager()
	assert.Empty(t, m.Spawn(0, 10, 10))
	assert.Empty(t, m.Spawn(3, 0, 10))
	assert.Equal(t, 0, m.Count())
}

func TestVehicleManager_Add(t *testing.T) {
	m := NewVehicleManager()
	id := m.Add(&Vehicle{X: 1, Y: 2})
	require.NotEmpty(t, id)
	v, ok := m.Get(id)
	require.True(t, ok)
	assert.False(t, v.CreatedAt.IsZero())

	assert.Equal(t, "fixed", m.Add(&Vehicle{ID: "fixed"}))
	assert.Equal(t, 2, m.Count())
}
