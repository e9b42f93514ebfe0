package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/config"
	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/reconcile"
	"github.com/uebliche/dockbridge/internal/registry"
	"github.com/uebliche/dockbridge/internal/report"
)

// passRunner is the part of the reconciler the status server needs.
type passRunner interface {
	Snapshot() reconcile.Snapshot
	RunPass(ctx context.Context) (reconcile.Summary, error)
}

// ledgerReader is the read side of the event ledger.
type ledgerReader interface {
	Recent(limit int) ([]*ledger.Entry, error)
	GetByType(eventType ledger.EventType, limit int) ([]*ledger.Entry, error)
	GetByPass(passID string) ([]*ledger.Entry, error)
}

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 1000
)

// StatusService provides the HTTP health, status and metrics endpoints.
type StatusService struct {
	cfg      *config.Config
	runner   passRunner
	registry registry.Table
	history  ledgerReader
	update   *UpdateService
	version  string
	server   *http.Server
}

// NewStatusService creates a new StatusService. history and upd may be nil.
func NewStatusService(cfg *config.Config, runner passRunner, reg registry.Table, history ledgerReader, upd *UpdateService, version string) *StatusService {
	return &StatusService{
		cfg:      cfg,
		runner:   runner,
		registry: reg,
		history:  history,
		update:   upd,
		version:  version,
	}
}

// Start begins the status server if enabled.
func (s *StatusService) Start(ctx context.Context, wg *sync.WaitGroup) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	s.server = &http.Server{
		Addr:    s.cfg.Healthcheck.Addr(),
		Handler: s.Handler(),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run(ctx)
	}()
}

func (s *StatusService) run(ctx context.Context) {
	log.Info().Str("addr", s.server.Addr).Msg("Starting status server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Status server error")
	}
}

// Handler returns the status server routes.
func (s *StatusService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.runner.Snapshot().Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first pass"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, report.FromSnapshot(s.runner.Snapshot(), s.version, s.update.Latest()))
	})

	mux.HandleFunc("GET /registry", s.handleRegistry)
	mux.HandleFunc("GET /ledger", s.handleLedger)
	mux.HandleFunc("POST /reconcile", s.handleReconcile)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

type registryView struct {
	Servers        []registry.Entry `json:"servers"`
	PreferredOrder []string         `json:"preferred_order"`
}

func (s *StatusService) handleRegistry(w http.ResponseWriter, r *http.Request) {
	entries, err := s.registry.Entries()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list registry")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	order, err := s.registry.PreferredOrder()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read preferred order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []registry.Entry{}
	}
	if order == nil {
		order = []string{}
	}
	writeJSON(w, http.StatusOK, registryView{Servers: entries, PreferredOrder: order})
}

// handleLedger serves ledger entries. ?pass= returns one pass in write order,
// otherwise the newest entries, optionally filtered by ?type=.
func (s *StatusService) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ledger not available"})
		return
	}

	q := r.URL.Query()
	limit := defaultLedgerLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLedgerLimit)
	}

	var (
		entries []*ledger.Entry
		err     error
	)
	switch passID, eventType := q.Get("pass"), ledger.EventType(q.Get("type")); {
	case passID != "":
		entries, err = s.history.GetByPass(passID)
	case eventType != "":
		if !eventType.Known() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown event type " + strconv.Quote(string(eventType))})
			return
		}
		entries, err = s.history.GetByType(eventType, limit)
	default:
		entries, err = s.history.Recent(limit)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *StatusService) handleReconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.RunPass(r.Context())
	switch {
	case errors.Is(err, reconcile.ErrPassInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, summary)
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
