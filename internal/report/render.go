package report

import (
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/reconcile"
)

// Render writes a human readable summary and the registrations table to w.
func Render(w io.Writer, s Status) {
	overview := table.NewWriter()
	overview.SetOutputMirror(w)
	overview.SetStyle(table.StyleRounded)
	overview.AppendRows([]table.Row{
		{"Version", versionCell(s)},
		{"Label", s.Label},
		{"Duplicates", s.Mode},
		{"Ready", readyCell(s.Ready)},
		{"Matched", s.Matched},
		{"Last scan", lastScanCell(s.LastScan)},
		{"Last pass", lastPassCell(s.LastPass)},
	})
	overview.Render()

	if len(s.Registrations) == 0 {
		fmt.Fprintln(w, text.FgHiBlack.Sprint("No registered servers"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Server", "Address", "Container", "Base name"})
	for _, reg := range s.Registrations {
		t.AppendRow(table.Row{
			reg.ServerName,
			net.JoinHostPort(reg.Host, strconv.Itoa(reg.Port)),
			reg.ResourceID,
			reg.BaseName,
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(s.Registrations)})
	t.Render()
}

func versionCell(s Status) string {
	if s.LatestVersion == "" {
		return s.Version
	}
	return fmt.Sprintf("%s %s", s.Version, text.FgYellow.Sprintf("(update available: %s)", s.LatestVersion))
}

func readyCell(ready bool) string {
	if ready {
		return text.FgGreen.Sprint("yes")
	}
	return text.FgYellow.Sprint("waiting for first pass")
}

func lastScanCell(t *time.Time) string {
	if t == nil {
		return text.FgHiBlack.Sprint("never")
	}
	return t.Format(time.RFC3339)
}

func lastPassCell(p *reconcile.Summary) string {
	if p == nil {
		return text.FgHiBlack.Sprint("none")
	}
	if p.Result == reconcile.ResultSkipped {
		return text.FgRed.Sprintf("skipped: %s", p.Error)
	}
	return fmt.Sprintf("+%d ~%d -%d (%d unchanged, %d failed)",
		p.Registered, p.Updated, p.Unregistered, p.Unchanged, p.Failed)
}

// RenderHistory writes ledger entries as a table, in the order given.
func RenderHistory(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, text.FgHiBlack.Sprint("No ledger entries"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Pass", "Event", "Server", "Details"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Timestamp.Local().Format(time.DateTime),
			shortPass(e.PassID),
			eventCell(e.EventType),
			e.ServerName,
			payloadCell(e.Payload),
		})
	}
	t.Render()
}

func shortPass(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func eventCell(t ledger.EventType) string {
	switch t {
	case ledger.EventRegistered:
		return text.FgGreen.Sprint(t)
	case ledger.EventUpdated:
		return text.FgCyan.Sprint(t)
	case ledger.EventUnregistered:
		return text.FgYellow.Sprint(t)
	case ledger.EventApplyFailed, ledger.EventDiscoveryFailed:
		return text.FgRed.Sprint(t)
	default:
		return string(t)
	}
}

func payloadCell(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(parts, " ")
}
