package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/naming"
	"github.com/uebliche/dockbridge/internal/registry"
)

type outcome struct {
	Registration Registration
	Status       Status
}

// applyOne makes the registry entry for name point at the container's address.
// On error the container is left out of this pass.
func (r *Reconciler) applyOne(ctx context.Context, passID, name string, c naming.Candidate, id naming.Identity) (outcome, error) {
	desired := registry.Endpoint{Host: id.Host, Port: id.Port}
	reg := Registration{
		ServerName: name,
		Host:       id.Host,
		Port:       id.Port,
		ResourceID: c.ResourceID,
		BaseName:   c.BaseName,
	}

	existing, present := r.registry.Lookup(name)
	if present && existing.Matches(desired) {
		r.ensurePreferred(name)
		return outcome{Registration: reg, Status: StatusUnchanged}, nil
	}

	status := StatusRegistered
	if present {
		status = StatusUpdated
		r.throttle(ctx)
		if err := r.registry.Remove(name); err != nil {
			r.applyFailed(passID, name, desired, status, err)
			return outcome{}, err
		}
	}

	r.throttle(ctx)
	if err := r.registry.Add(name, desired); err != nil {
		r.applyFailed(passID, name, desired, status, err)
		return outcome{}, err
	}
	r.ensurePreferred(name)

	payload := map[string]any{
		"host":         desired.Host,
		"port":         desired.Port,
		"container_id": c.ResourceID,
		"base_name":    c.BaseName,
	}
	if status == StatusUpdated {
		if r.cfg.Log.Updated {
			log.Info().Str("server", name).Str("address", desired.String()).Str("previous", existing.String()).Msg("Updated server")
		}
		payload["previous"] = existing.String()
		r.record(ledger.EventUpdated, passID, name, payload)
	} else {
		if r.cfg.Log.Registered {
			log.Info().Str("server", name).Str("address", desired.String()).Msg("Registered server")
		}
		r.record(ledger.EventRegistered, passID, name, payload)
	}
	mutationsTotal.WithLabelValues(string(status)).Inc()

	return outcome{Registration: reg, Status: status}, nil
}

func (r *Reconciler) applyFailed(passID, name string, ep registry.Endpoint, status Status, err error) {
	action := "register"
	if status == StatusUpdated {
		action = "update"
	}
	log.Warn().Err(err).Str("server", name).Str("address", ep.String()).Msgf("Failed to %s server", action)
	r.record(ledger.EventApplyFailed, passID, name, map[string]any{
		"action":  action,
		"address": ep.String(),
		"error":   err.Error(),
	})
	mutationsTotal.WithLabelValues("apply_failed").Inc()
}

// unregisterMissing removes every server registered last pass that is not in seen
// and returns how many were dropped.
func (r *Reconciler) unregisterMissing(ctx context.Context, passID string, seen map[string]Registration) int {
	removed := 0
	for _, name := range r.state.sortedNames() {
		if _, ok := seen[name]; ok {
			continue
		}
		removed++

		if _, present := r.registry.Lookup(name); !present {
			continue
		}
		r.throttle(ctx)
		if err := r.registry.Remove(name); err != nil {
			log.Warn().Err(err).Str("server", name).Msg("Failed to unregister server")
			continue
		}
		if r.cfg.Log.Unregistered {
			log.Info().Str("server", name).Msg("Unregistered server (no matching container)")
		}
		r.record(ledger.EventUnregistered, passID, name, nil)
		mutationsTotal.WithLabelValues("unregistered").Inc()
	}
	return removed
}

// ensurePreferred adds name to the preferred connection order, best effort.
func (r *Reconciler) ensurePreferred(name string) {
	added, err := r.registry.EnsurePreferred(name)
	switch {
	case errors.Is(err, registry.ErrUnsupported):
		capabilityUnavailableTotal.Inc()
		log.Warn().Str("server", name).Msg("Could not update connection order at runtime, add the server to the preferred order manually")
	case err != nil:
		log.Warn().Err(err).Str("server", name).Msg("Failed to update connection order")
	case added && (r.cfg.Log.Registered || r.cfg.Log.Updated):
		log.Info().Str("server", name).Msg("Added server to connection order")
	}
}

func (r *Reconciler) throttle(ctx context.Context) {
	if r.limiter == nil {
		return
	}
	if err := r.limiter.Wait(ctx); err != nil {
		log.Debug().Err(err).Msg("Rate limiter wait failed")
	}
}
