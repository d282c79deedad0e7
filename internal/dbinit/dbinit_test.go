package dbinit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_Ordered(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_traffic_events.sql", "002_open_incidents.sql"}, files)
}

func TestReplaceDBName(t *testing.T) {
	tests := []struct {
		name, conn, db, want string
		wantErr              bool
	}{
		{"plain", "postgres://u:p@h:5432/postgres", "routeiq", "postgres://u:p@h:5432/routeiq", false},
		{"with query", "postgres://u@h:5432/postgres?sslmode=disable", "routeiq", "postgres://u@h:5432/routeiq?sslmode=disable", false},
		{"no path", "postgres://u@h:5432", "routeiq", "", true},
		{"garbage", "routeiq", "routeiq", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := replaceDBName(tt.conn, tt.db)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdminURL(t *testing.T) {
	got, err := AdminURL("postgres://routeiq:pw@db:5432/routeiq?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "postgres://routeiq:pw@db:5432/postgres?sslmode=disable", got)
}
