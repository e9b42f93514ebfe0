// Package reconcile keeps the registry in line with the containers discovery reports.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/uebliche/dockbridge/internal/discovery"
	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/naming"
)

// ErrPassInProgress is returned when a pass is requested while another is running.
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// Observer lists the containers carrying the marker label.
type Observer interface {
	Scan(ctx context.Context, key, value string) ([]discovery.Resource, error)
}

// Journal records registry changes for auditing. *ledger.Ledger implements it.
type Journal interface {
	Append(eventType ledger.EventType, passID, serverName string, payload map[string]any) error
}

// Status is the per-container result of apply.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusUpdated    Status = "updated"
	StatusUnchanged  Status = "unchanged"
)

// Result is the terminal state of a pass.
type Result string

const (
	ResultApplied Result = "applied"
	ResultSkipped Result = "skipped"
)

// Registration is one server the reconciler owns in the registry.
type Registration struct {
	ServerName string `json:"server_name"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	ResourceID string `json:"container_id"`
	BaseName   string `json:"base_name"`
}

// Summary reports what one pass did. Duration is encoded as a string such as "1.5s".
type Summary struct {
	PassID       string        `json:"pass_id"`
	Result       Result        `json:"result"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Matched      int           `json:"matched"`
	Registered   int           `json:"registered"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Unregistered int           `json:"unregistered"`
	Superseded   int           `json:"superseded"` // overwrite mode: containers that lost their name to a later one
	Failed       int           `json:"failed"`
	Error        string        `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Duration string `json:"duration"`
	}{plain: plain(s), Duration: s.Duration.String()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Summary) UnmarshalJSON(data []byte) error {
	type plain Summary
	aux := struct {
		*plain
		Duration string `json:"duration"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.Duration = 0
	if aux.Duration != "" {
		d, err := time.ParseDuration(aux.Duration)
		if err != nil {
			return err
		}
		s.Duration = d
	}
	return nil
}

// Changed reports whether the pass mutated the registry.
func (s Summary) Changed() bool {
	return s.Registered > 0 || s.Updated > 0 || s.Unregistered > 0
}

// LogOptions toggles the informational log lines of a pass.
type LogOptions struct {
	Scan                 bool
	Summary              bool
	SummaryWhenUnchanged bool
	Registered           bool
	Updated              bool
	Unregistered         bool
}

// Config holds reconciler settings.
type Config struct {
	MarkerKey    string
	MarkerValue  string
	Mode         naming.Mode
	Resolver     naming.Resolver
	PollInterval time.Duration
	RateLimitRPS float64 // registry mutations per second, 0 = unlimited
	Log          LogOptions

	// RenameOnRelabel moves a container to a new name when its base name changes.
	RenameOnRelabel bool
}
