package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/uebliche/dockbridge/internal/ledger"
	"github.com/uebliche/dockbridge/internal/naming"
	"github.com/uebliche/dockbridge/internal/registry"
)

// Reconciler converges the registry towards the set of labelled containers.
type Reconciler struct {
	cfg      Config
	observer Observer
	registry registry.Port
	journal  Journal
	store    StateStore // nil keeps ownership in memory only
	limiter  *rate.Limiter

	// passMu is held for the whole pass; a pass that cannot take it is dropped.
	passMu sync.Mutex

	mu       sync.RWMutex // guards state and lastPass for readers
	state    State
	lastPass *Summary
	ready    bool

	trigger chan struct{}
	now     func() time.Time
}

// New creates a Reconciler. journal may be nil.
func New(cfg Config, observer Observer, reg registry.Port, journal Journal) *Reconciler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = naming.ModeSuffix
	}
	if cfg.Resolver.DefaultPort == 0 {
		cfg.Resolver.DefaultPort = naming.DefaultPort
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Reconciler{
		cfg:      cfg,
		observer: observer,
		registry: reg,
		journal:  journal,
		limiter:  limiter,
		state:    newState(map[string]Registration{}, 0, time.Time{}),
		trigger:  make(chan struct{}),
		now:      time.Now,
	}
}

// Restore loads the registrations a previous process owned from store and keeps
// saving to it after every pass that changes them. Stored names that are no
// longer in the registry are dropped. Call it before the first pass.
func (r *Reconciler) Restore(store StateStore) error {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	stored, err := store.Load()
	if err != nil {
		return err
	}
	owned := make(map[string]Registration, len(stored))
	for _, reg := range stored {
		if !r.inRegistry(reg.ServerName) {
			log.Debug().Str("server", reg.ServerName).Msg("Owned server no longer in registry, forgetting it")
			continue
		}
		owned[reg.ServerName] = reg
	}

	r.mu.Lock()
	r.state = newState(owned, 0, time.Time{})
	r.mu.Unlock()
	r.store = store

	if len(owned) != len(stored) {
		r.save(owned)
	}
	log.Info().Int("servers", len(owned)).Msg("Restored owned servers")
	return nil
}

// RunPass performs one discovery, resolve and apply cycle.
//
// A pass that finds the inventory unreachable is Skipped: the registry and the
// reconciler state are left untouched and the discovery error is returned. A
// pass requested while another one runs returns ErrPassInProgress.
// Cancelling ctx does not interrupt a pass that has started.
func (r *Reconciler) RunPass(ctx context.Context) (Summary, error) {
	if !r.passMu.TryLock() {
		passesTotal.WithLabelValues("dropped").Inc()
		return Summary{}, ErrPassInProgress
	}
	defer r.passMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	summary := Summary{
		PassID:    uuid.NewString(),
		StartedAt: r.now(),
	}

	if r.cfg.Log.Scan {
		log.Info().
			Str("label", r.cfg.MarkerKey+"="+r.cfg.MarkerValue).
			Msg("Scanning Docker for auto-register containers")
	}

	resources, err := r.observer.Scan(ctx, r.cfg.MarkerKey, r.cfg.MarkerValue)
	if err != nil {
		summary.Result = ResultSkipped
		summary.Error = err.Error()
		summary.Duration = r.now().Sub(summary.StartedAt)

		log.Warn().Err(err).Str("pass", summary.PassID).Msg("Docker refresh skipped, keeping previous registrations")
		r.record(ledger.EventDiscoveryFailed, summary.PassID, "", map[string]any{"error": err.Error()})
		passesTotal.WithLabelValues(string(ResultSkipped)).Inc()

		r.mu.Lock()
		r.lastPass = &summary
		r.mu.Unlock()
		return summary, err
	}

	sort.SliceStable(resources, func(i, j int) bool { return resources[i].ID < resources[j].ID })
	summary.Matched = len(resources)

	batch := make([]naming.Candidate, len(resources))
	identities := make([]naming.Identity, len(resources))
	for i, res := range resources {
		identities[i] = r.cfg.Resolver.Resolve(res)
		batch[i] = naming.Candidate{ResourceID: res.ShortID(), BaseName: identities[i].BaseName}
	}

	var opts []naming.Option
	if r.cfg.RenameOnRelabel {
		opts = append(opts, naming.WithRenameOnRelabel())
	}
	assigner := naming.NewAssigner(r.cfg.Mode, batch, r.state.assignments(), r.inRegistry, opts...)
	next := make(map[string]Registration, len(resources))

	// In overwrite mode only the last container per base name is applied.
	lastWriter := make(map[string]int)
	if r.cfg.Mode == naming.ModeOverwrite {
		for i, c := range batch {
			lastWriter[c.BaseName] = i
		}
	}

	for i := range resources {
		if w, ok := lastWriter[batch[i].BaseName]; ok && w != i {
			summary.Superseded++
			log.Debug().
				Str("server", batch[i].BaseName).
				Str("container", batch[i].ResourceID).
				Str("winner", batch[w].ResourceID).
				Msg("Container superseded by a later one with the same name")
			continue
		}

		name := assigner.Choose(batch[i])
		outcome, err := r.applyOne(ctx, summary.PassID, name, batch[i], identities[i])
		if err != nil {
			summary.Failed++
			continue
		}
		assigner.Claim(name)
		next[name] = outcome.Registration

		switch outcome.Status {
		case StatusRegistered:
			summary.Registered++
		case StatusUpdated:
			summary.Updated++
		case StatusUnchanged:
			summary.Unchanged++
		}
	}

	summary.Unregistered = r.unregisterMissing(ctx, summary.PassID, next)
	summary.Result = ResultApplied
	summary.Duration = r.now().Sub(summary.StartedAt)

	ownershipChanged := !sameRegistrations(r.state.LastRegistrations, next)

	r.mu.Lock()
	r.state = newState(next, len(resources), summary.StartedAt)
	r.lastPass = &summary
	r.ready = true
	r.mu.Unlock()

	if ownershipChanged {
		r.save(next)
	}

	passesTotal.WithLabelValues(string(ResultApplied)).Inc()
	passDuration.Observe(summary.Duration.Seconds())
	matchedContainers.Set(float64(summary.Matched))
	registeredServers.Set(float64(len(next)))

	r.logSummary(summary)
	if summary.Changed() {
		r.record(ledger.EventPassApplied, summary.PassID, "", map[string]any{
			"matched":      summary.Matched,
			"registered":   summary.Registered,
			"updated":      summary.Updated,
			"unchanged":    summary.Unchanged,
			"unregistered": summary.Unregistered,
			"superseded":   summary.Superseded,
			"failed":       summary.Failed,
		})
	}

	return summary, nil
}

// Snapshot returns a copy of the current state for reporting.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		MarkerKey:     r.cfg.MarkerKey,
		MarkerValue:   r.cfg.MarkerValue,
		Mode:          r.cfg.Mode,
		Registrations: r.state.sortedRegistrations(),
		MatchedCount:  r.state.LastMatchedCount,
		LastScan:      r.state.LastScan,
		Ready:         r.ready,
	}
	if r.lastPass != nil {
		last := *r.lastPass
		snap.LastPass = &last
	}
	return snap
}

func (r *Reconciler) inRegistry(name string) bool {
	_, ok := r.registry.Lookup(name)
	return ok
}

func (r *Reconciler) save(registrations map[string]Registration) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(newState(registrations, 0, time.Time{}).sortedRegistrations()); err != nil {
		log.Warn().Err(err).Msg("Failed to store owned servers")
	}
}

func (r *Reconciler) logSummary(s Summary) {
	if !r.cfg.Log.Summary || !(s.Changed() || r.cfg.Log.SummaryWhenUnchanged) {
		return
	}
	log.Info().
		Str("pass", s.PassID).
		Int("matched", s.Matched).
		Int("registered", s.Registered).
		Int("updated", s.Updated).
		Int("unchanged", s.Unchanged).
		Int("unregistered", s.Unregistered).
		Int("superseded", s.Superseded).
		Int("failed", s.Failed).
		Dur("took", s.Duration).
		Msg("Docker refresh complete")
}

func (r *Reconciler) record(eventType ledger.EventType, passID, serverName string, payload map[string]any) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Append(eventType, passID, serverName, payload); err != nil {
		log.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to write ledger entry")
	}
}
