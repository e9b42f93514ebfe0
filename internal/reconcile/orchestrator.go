package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Trigger requests an immediate pass. It returns false, and the request is
// dropped, when the run loop is busy with a pass or not running.
func (r *Reconciler) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		log.Debug().Msg("Reconcile trigger dropped, pass in progress")
		return false
	}
}

// Run performs an initial pass, then one every poll interval and on Trigger,
// until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	log.Info().Dur("poll_interval", r.cfg.PollInterval).Msg("Reconciler started")

	r.runPass(ctx)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciler stopping")
			return nil
		case <-r.trigger:
			r.runPass(ctx)
		case <-ticker.C:
			r.runPass(ctx)
		}
	}
}

func (r *Reconciler) runPass(ctx context.Context) {
	if _, err := r.RunPass(ctx); errors.Is(err, ErrPassInProgress) {
		log.Debug().Msg("Skipping scheduled pass, previous pass still running")
	}
}

// PollInterval returns the configured interval between scheduled passes.
func (r *Reconciler) PollInterval() time.Duration {
	return r.cfg.PollInterval
}
