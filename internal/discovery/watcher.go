package discovery

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/rs/zerolog/log"
)

// DefaultWatchBackoff is the pause before resubscribing after the event stream fails.
const DefaultWatchBackoff = 5 * time.Second

// watchedActions are the container lifecycle events that can change the scan result.
var watchedActions = []events.Action{
	events.ActionStart,
	events.ActionDie,
	events.ActionStop,
	events.ActionDestroy,
	events.ActionRename,
}

// Watch subscribes to container events for key=value and calls onChange for each
// one. It resubscribes after stream errors and returns when ctx is cancelled.
func (o *DockerObserver) Watch(ctx context.Context, key, value string, backoff time.Duration, onChange func()) {
	if backoff == 0 {
		backoff = DefaultWatchBackoff
	}

	args := filters.NewArgs(
		filters.Arg("type", string(events.ContainerEventType)),
		filters.Arg("label", key+"="+value),
	)
	for _, a := range watchedActions {
		args.Add("event", string(a))
	}

	log.Info().Str("label", key+"="+value).Msg("Watching Docker container events")

	for {
		msgs, errs := o.api.Events(ctx, events.ListOptions{Filters: args})
		err := consume(ctx, msgs, errs, onChange)
		if ctx.Err() != nil {
			log.Info().Msg("Docker event watcher stopping")
			return
		}

		log.Warn().Err(err).Dur("backoff", backoff).Msg("Docker event stream interrupted, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func consume(ctx context.Context, msgs <-chan events.Message, errs <-chan error, onChange func()) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			log.Debug().
				Str("action", string(msg.Action)).
				Str("id", Resource{ID: msg.Actor.ID}.ShortID()).
				Msg("Docker container event")
			onChange()
		}
	}
}
