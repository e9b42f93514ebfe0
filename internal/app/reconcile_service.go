package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/config"
	"github.com/uebliche/dockbridge/internal/discovery"
	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/reconcile"
)

// eventSource delivers container change notifications.
type eventSource interface {
	Watch(ctx context.Context, key, value string, backoff time.Duration, onChange func())
}

// ReconcileService runs the reconciler loop and related periodic tasks.
type ReconcileService struct {
	cfg        *config.Config
	Reconciler *reconcile.Reconciler
	events     eventSource
	ledger     *ledger.Ledger
}

// NewReconcileService creates a new ReconcileService. events and l may be nil.
func NewReconcileService(cfg *config.Config, rec *reconcile.Reconciler, events eventSource, l *ledger.Ledger) *ReconcileService {
	return &ReconcileService{
		cfg:        cfg,
		Reconciler: rec,
		events:     events,
		ledger:     l,
	}
}

// Start begins the reconcile loop, the event watcher and ledger cleanup.
func (s *ReconcileService) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Reconciler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Reconciler error")
		}
	}()

	if s.cfg.Docker.WatchEvents && s.events != nil {
		ar := s.cfg.Autoregister
		debouncer := discovery.NewDebouncer(s.cfg.Docker.EventDebounce.Duration(), func(events int) {
			if !s.Reconciler.Trigger() {
				log.Debug().Int("events", events).Msg("Container events arrived during a pass, next poll will pick them up")
			}
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer debouncer.Close()
			s.events.Watch(ctx, ar.LabelKey, ar.LabelValue, discovery.DefaultWatchBackoff, debouncer.Notify)
		}()
	}

	if s.ledger != nil && s.cfg.Ledger.Retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLedgerCleanup(ctx)
		}()
	}
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *ReconcileService) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.Retention.Duration()
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
