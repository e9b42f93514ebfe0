package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/config"
	"github.com/uebliche/dockbridge/internal/update"
)

// UpdateService checks once at startup whether a newer release exists.
type UpdateService struct {
	enabled bool
	current string
	checker *update.Checker
	latest  atomic.Value // string
}

// NewUpdateService creates a new UpdateService.
func NewUpdateService(cfg *config.Config, current string) *UpdateService {
	return &UpdateService{
		enabled: cfg.Update.Enabled,
		current: current,
		checker: update.NewChecker(cfg.Update.URL, cfg.Update.Timeout.Duration()),
	}
}

// Start runs the check in the background if enabled.
func (s *UpdateService) Start(ctx context.Context, wg *sync.WaitGroup) {
	if !s.enabled {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.check(ctx)
	}()
}

func (s *UpdateService) check(ctx context.Context) {
	latest, ok, err := s.checker.Check(ctx, s.current)
	if err != nil {
		log.Warn().Err(err).Msg("Update check failed")
		return
	}
	if !ok {
		log.Debug().Str("version", s.current).Msg("DockBridge is up to date")
		return
	}
	s.latest.Store(latest)
	log.Info().
		Str("current", s.current).
		Str("latest", latest).
		Msg("A new DockBridge version is available on Modrinth")
}

// Latest returns the newer version found, or "".
func (s *UpdateService) Latest() string {
	if s == nil {
		return ""
	}
	v, _ := s.latest.Load().(string)
	return v
}
