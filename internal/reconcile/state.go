package reconcile

import (
	"sort"
	"time"

	"github.com/uebliche/dockbridge/internal/naming"
)

// State is what the reconciler believes it owns. It is replaced as a whole at
// the end of every applied pass and never partially updated.
type State struct {
	RegisteredNames   map[string]struct{}
	LastRegistrations map[string]Registration // by server name
	LastMatchedCount  int
	LastScan          time.Time
}

func newState(registrations map[string]Registration, matched int, scannedAt time.Time) State {
	names := make(map[string]struct{}, len(registrations))
	for name := range registrations {
		names[name] = struct{}{}
	}
	return State{
		RegisteredNames:   names,
		LastRegistrations: registrations,
		LastMatchedCount:  matched,
		LastScan:          scannedAt,
	}
}

// assignments converts the registrations into the naming package's prior state.
func (s State) assignments() []naming.Assignment {
	out := make([]naming.Assignment, 0, len(s.LastRegistrations))
	for _, reg := range s.sortedRegistrations() {
		out = append(out, naming.Assignment{ServerName: reg.ServerName, ResourceID: reg.ResourceID})
	}
	return out
}

func sameRegistrations(a, b map[string]Registration) bool {
	if len(a) != len(b) {
		return false
	}
	for name, reg := range a {
		if other, ok := b[name]; !ok || other != reg {
			return false
		}
	}
	return true
}

func (s State) sortedRegistrations() []Registration {
	out := make([]Registration, 0, len(s.LastRegistrations))
	for _, reg := range s.LastRegistrations {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerName < out[j].ServerName })
	return out
}

func (s State) sortedNames() []string {
	out := make([]string, 0, len(s.RegisteredNames))
	for name := range s.RegisteredNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot is a read-only copy of reconciler state for reporting.
type Snapshot struct {
	MarkerKey     string         `json:"marker_key"`
	MarkerValue   string         `json:"marker_value"`
	Mode          naming.Mode    `json:"duplicate_strategy"`
	Registrations []Registration `json:"registrations"`
	MatchedCount  int            `json:"matched"`
	LastScan      time.Time      `json:"last_scan"`
	LastPass      *Summary       `json:"last_pass,omitempty"`
	Ready         bool           `json:"ready"`
}
