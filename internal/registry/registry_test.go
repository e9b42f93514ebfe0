package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uebliche/dockbridge/internal/db"
)

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr bool
	}{
		{name: "valid", ep: Endpoint{Host: "lobby", Port: 25565}},
		{name: "ip", ep: Endpoint{Host: "10.0.0.4", Port: 1}},
		{name: "empty_host", ep: Endpoint{Host: "", Port: 25565}, wantErr: true},
		{name: "host_with_space", ep: Endpoint{Host: "my server", Port: 25565}, wantErr: true},
		{name: "padded_host", ep: Endpoint{Host: " lobby", Port: 25565}, wantErr: true},
		{name: "port_zero", ep: Endpoint{Host: "lobby", Port: 0}, wantErr: true},
		{name: "port_too_large", ep: Endpoint{Host: "lobby", Port: 70000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.ep)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidAddress), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEndpoint_Matches(t *testing.T) {
	a := Endpoint{Host: "Lobby", Port: 25565}
	assert.True(t, a.Matches(Endpoint{Host: "lobby", Port: 25565}))
	assert.False(t, a.Matches(Endpoint{Host: "lobby", Port: 25566}))
	assert.False(t, a.Matches(Endpoint{Host: "hub", Port: 25565}))
	assert.Equal(t, "Lobby:25565", a.String())
}

func openSQLite(t *testing.T, orderMutable bool) *SQLite {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "registry.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewSQLite(database.DB, orderMutable)
}

// exercise runs the same contract checks against every Table implementation.
func exercise(t *testing.T, tbl Table) {
	_, ok := tbl.Lookup("lobby")
	assert.False(t, ok)

	require.NoError(t, tbl.Add("lobby", Endpoint{Host: "mc-lobby", Port: 25565}))
	ep, ok := tbl.Lookup("lobby")
	require.True(t, ok)
	assert.Equal(t, Endpoint{Host: "mc-lobby", Port: 25565}, ep)

	assert.Error(t, tbl.Add("lobby", Endpoint{Host: "other", Port: 25565}), "duplicate add must fail")

	err := tbl.Add("broken", Endpoint{Host: "", Port: 25565})
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	_, ok = tbl.Lookup("broken")
	assert.False(t, ok)

	require.NoError(t, tbl.Add("hub", Endpoint{Host: "mc-hub", Port: 25566}))
	entries, err := tbl.Entries()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "hub", Endpoint: Endpoint{Host: "mc-hub", Port: 25566}},
		{Name: "lobby", Endpoint: Endpoint{Host: "mc-lobby", Port: 25565}},
	}, entries)

	require.NoError(t, tbl.Remove("lobby"))
	require.NoError(t, tbl.Remove("lobby"), "removing an absent name is not an error")
	_, ok = tbl.Lookup("lobby")
	assert.False(t, ok)
}

func TestMemory_Contract(t *testing.T) {
	exercise(t, NewMemory(true))
}

func TestSQLite_Contract(t *testing.T) {
	exercise(t, openSQLite(t, true))
}

func TestPreferredOrder(t *testing.T) {
	tables := map[string]func(bool) Table{
		"memory": func(m bool) Table { return NewMemory(m) },
		"sqlite": func(m bool) Table { return openSQLite(t, m) },
	}

	for name, newTable := range tables {
		t.Run(name+"/mutable", func(t *testing.T) {
			tbl := newTable(true)

			added, err := tbl.EnsurePreferred("lobby")
			require.NoError(t, err)
			assert.True(t, added)

			added, err = tbl.EnsurePreferred("lobby")
			require.NoError(t, err)
			assert.False(t, added)

			_, err = tbl.EnsurePreferred("hub")
			require.NoError(t, err)

			order, err := tbl.PreferredOrder()
			require.NoError(t, err)
			assert.Equal(t, []string{"lobby", "hub"}, order)
		})

		t.Run(name+"/read_only", func(t *testing.T) {
			tbl := newTable(false)

			added, err := tbl.EnsurePreferred("lobby")
			assert.False(t, added)
			assert.True(t, errors.Is(err, ErrUnsupported))

			order, err := tbl.PreferredOrder()
			require.NoError(t, err)
			assert.Empty(t, order)
		})
	}
}

func TestMemory_ReadOnlyOrderAcceptsKnownNames(t *testing.T) {
	m := NewMemory(false, "lobby")

	added, err := m.EnsurePreferred("lobby")
	require.NoError(t, err)
	assert.False(t, added)
}
