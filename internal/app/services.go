package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/config"
	"github.com/uebliche/dockbridge/internal/db"
	"github.com/uebliche/dockbridge/internal/discovery"
	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/naming"
	"github.com/uebliche/dockbridge/internal/reconcile"
	"github.com/uebliche/dockbridge/internal/registry"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB       *db.DB
	Ledger   *ledger.Ledger
	Registry registry.Table
	Docker   *discovery.DockerObserver

	// High-level services
	Reconcile *ReconcileService
	Update    *UpdateService
	Status    *StatusService

	wg sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, version string) (*Services, error) {
	s := &Services{cfg: cfg}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)

	switch cfg.Registry.Backend {
	case "sqlite":
		s.Registry = registry.NewSQLite(database.DB, cfg.Registry.PreferredOrderMutable)
	default:
		s.Registry = registry.NewMemory(cfg.Registry.PreferredOrderMutable)
	}

	s.Docker, err = discovery.NewDockerObserver(cfg.Docker.Endpoint, cfg.Docker.Timeout.Duration(), cfg.Log.Matches)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("docker client: %w", err)
	}

	rec := reconcile.New(reconcilerConfig(cfg), s.Docker, s.Registry, s.Ledger)
	if cfg.Registry.Backend == "sqlite" {
		// The table outlives the process; reload which rows are ours.
		if err := rec.Restore(reconcile.NewSQLiteStore(database.DB)); err != nil {
			s.Close()
			return nil, fmt.Errorf("restore owned servers: %w", err)
		}
	}
	s.Reconcile = NewReconcileService(cfg, rec, s.Docker, s.Ledger)
	s.Update = NewUpdateService(cfg, version)
	s.Status = NewStatusService(cfg, rec, s.Registry, s.Ledger, s.Update, version)

	return s, nil
}

func reconcilerConfig(cfg *config.Config) reconcile.Config {
	ar := cfg.Autoregister
	return reconcile.Config{
		MarkerKey:       ar.LabelKey,
		MarkerValue:     ar.LabelValue,
		Mode:            ar.DuplicateMode(),
		PollInterval:    cfg.Docker.PollInterval.Duration(),
		RateLimitRPS:    cfg.Reconciler.RateLimitRPS,
		RenameOnRelabel: ar.RenameOnRelabel,
		Resolver: naming.Resolver{
			NameLabel:   ar.NameLabel,
			PortLabel:   ar.PortLabel,
			DefaultPort: ar.DefaultPort,
		},
		Log: reconcile.LogOptions{
			Scan:                 cfg.Log.Scan,
			Summary:              cfg.Log.Summary,
			SummaryWhenUnchanged: cfg.Log.SummaryWhenUnchanged,
			Registered:           cfg.Log.Registered,
			Updated:              cfg.Log.Updated,
			Unregistered:         cfg.Log.Unregistered,
		},
	}
}

// Start starts all background services in order.
func (s *Services) Start(ctx context.Context) error {
	s.Docker.Ping(ctx)

	s.Status.Start(ctx, &s.wg)
	s.Update.Start(ctx, &s.wg)
	s.Reconcile.Start(ctx, &s.wg)

	return nil
}

// Stop waits up to timeout for background services, then releases resources.
func (s *Services) Stop(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Timed out waiting for services to stop")
	}

	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Docker != nil {
		if err := s.Docker.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Docker client")
		}
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
