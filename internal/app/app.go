package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/config"
)

// App owns the services of one dockbridge process.
type App struct {
	cfg      *config.Config
	services *Services
}

// New creates the services without starting them.
func New(cfg *config.Config, version string) (*App, error) {
	services, err := NewServices(cfg, version)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, services: services}, nil
}

// Run starts all services and blocks until ctx is cancelled, then waits up to
// the shutdown timeout for them to finish and releases their resources.
func (a *App) Run(ctx context.Context) error {
	if err := a.services.Start(ctx); err != nil {
		a.services.Close()
		return err
	}
	log.Info().
		Str("registry", a.cfg.Registry.Backend).
		Str("label", a.cfg.Autoregister.LabelKey+"="+a.cfg.Autoregister.LabelValue).
		Msg("DockBridge started")

	<-ctx.Done()

	log.Info().Msg("Shutting down...")
	return a.services.Stop(a.cfg.GetShutdownTimeout())
}

// SignalContext returns a copy of parent that is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
