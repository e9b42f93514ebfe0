// Package report defines the status document served by the daemon and renders
// it for the command line.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/reconcile"
)

// Status is the JSON body of GET /status.
type Status struct {
	Version       string                   `json:"version"`
	LatestVersion string                   `json:"latest_version,omitempty"`
	Label         string                   `json:"label"`
	Mode          string                   `json:"duplicate_strategy"`
	Matched       int                      `json:"matched"`
	LastScan      *time.Time               `json:"last_scan,omitempty"`
	Ready         bool                     `json:"ready"`
	LastPass      *reconcile.Summary       `json:"last_pass,omitempty"`
	Registrations []reconcile.Registration `json:"registrations"`
}

// FromSnapshot builds a Status from reconciler state.
func FromSnapshot(snap reconcile.Snapshot, version, latest string) Status {
	s := Status{
		Version:       version,
		LatestVersion: latest,
		Label:         snap.MarkerKey + "=" + snap.MarkerValue,
		Mode:          string(snap.Mode),
		Matched:       snap.MatchedCount,
		Ready:         snap.Ready,
		LastPass:      snap.LastPass,
		Registrations: snap.Registrations,
	}
	if !snap.LastScan.IsZero() {
		scanned := snap.LastScan
		s.LastScan = &scanned
	}
	if s.Registrations == nil {
		s.Registrations = []reconcile.Registration{}
	}
	return s
}

// Fetch retrieves the status document from a running daemon at baseURL.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (Status, []byte, error) {
	body, err := get(ctx, client, strings.TrimRight(baseURL, "/")+"/status")
	if err != nil {
		return Status{}, body, err
	}

	var s Status
	if err := json.Unmarshal(body, &s); err != nil {
		return Status{}, body, fmt.Errorf("parse status: %w", err)
	}
	return s, body, nil
}

// HistoryQuery selects ledger entries. Empty fields are not sent.
type HistoryQuery struct {
	PassID    string
	EventType string
	Limit     int
}

func (q HistoryQuery) encode() string {
	v := url.Values{}
	if q.PassID != "" {
		v.Set("pass", q.PassID)
	}
	if q.EventType != "" {
		v.Set("type", q.EventType)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// FetchHistory retrieves ledger entries from a running daemon at baseURL.
func FetchHistory(ctx context.Context, client *http.Client, baseURL string, q HistoryQuery) ([]ledger.Entry, []byte, error) {
	body, err := get(ctx, client, strings.TrimRight(baseURL, "/")+"/ledger"+q.encode())
	if err != nil {
		return nil, body, err
	}

	var entries []ledger.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, body, fmt.Errorf("parse ledger: %w", err)
	}
	return entries, body, nil
}

func get(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("%s returned %d", req.URL.Path, resp.StatusCode)
	}
	return body, nil
}
