package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/reconcile"
	"github.com/uebliche/dockbridge/internal/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd("2024-05-01")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd("dev")

	assert.Equal(t, "dockbridge", root.Use)
	assert.True(t, root.SilenceUsage)
	assert.NotNil(t, root.PersistentFlags().ShorthandLookup("c"))

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "status", "history", "version"})
}

func TestVersion(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "subcommand", args: []string{"version"}},
		{name: "flag", args: []string{"--version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, "dockbridge version 2024-05-01\n", out)
		})
	}
}

func statusServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := report.Status{
		Version: "2024-05-01",
		Label:   "net.uebliche.dockbridge.autoregister=true",
		Mode:    "suffix",
		Matched: 1,
		Ready:   true,
		Registrations: []reconcile.Registration{
			{ServerName: "lobby", Host: "lobby", Port: 25565, ResourceID: "aaa111aaa111", BaseName: "lobby"},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus_Table(t *testing.T) {
	srv := statusServer(t)

	out, err := execute(t, "status", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "lobby:25565")
	assert.Contains(t, out, "net.uebliche.dockbridge.autoregister=true")
}

func TestStatus_JSON(t *testing.T) {
	srv := statusServer(t)

	out, err := execute(t, "status", "--addr", srv.URL, "--format", "json")
	require.NoError(t, err)

	var got report.Status
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "suffix", got.Mode)
}

func TestStatus_UnknownFormat(t *testing.T) {
	_, err := execute(t, "status", "--addr", "http://127.0.0.1:1", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestStatusAddr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("healthcheck:\n  host: 0.0.0.0\n  port: 9191\n"), 0o644))

	addr, err := statusAddr(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9191", addr)
}

func historyServer(t *testing.T, seen chan<- string) *httptest.Server {
	t.Helper()
	entries := []ledger.Entry{
		{ID: 2, EventType: ledger.EventUnregistered, Timestamp: time.Now(), PassID: "pass-2", ServerName: "hub"},
		{ID: 1, EventType: ledger.EventRegistered, Timestamp: time.Now(), PassID: "pass-1", ServerName: "lobby",
			Payload: map[string]any{"host": "lobby", "port": 25565}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL.RequestURI()
		_ = json.NewEncoder(w).Encode(entries)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHistory_Table(t *testing.T) {
	seen := make(chan string, 1)
	srv := historyServer(t, seen)

	out, err := execute(t, "history", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/ledger?limit=20", <-seen)
	assert.Contains(t, out, "unregistered")
	assert.Contains(t, out, "host=lobby port=25565")
}

func TestHistory_FiltersAndJSON(t *testing.T) {
	seen := make(chan string, 1)
	srv := historyServer(t, seen)

	out, err := execute(t, "history", "--addr", srv.URL, "--pass", "pass-1", "-t", "registered", "-n", "5", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, "/ledger?limit=5&pass=pass-1&type=registered", <-seen)

	var got []ledger.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 2)
}

func TestHistory_UnknownFormat(t *testing.T) {
	_, err := execute(t, "history", "--addr", "http://127.0.0.1:1", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}
