package naming

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mode controls what happens when several containers resolve to the same base name.
type Mode string

const (
	// ModeSuffix keeps names unique by appending a container id suffix.
	ModeSuffix Mode = "suffix"
	// ModeOverwrite lets the last container in scan order win the name.
	ModeOverwrite Mode = "overwrite"
)

// SuffixLength is the number of id characters appended to duplicate names.
const SuffixLength = 6

// ParseMode parses a duplicate strategy. Unknown values fall back to ModeSuffix
// with a warning.
func ParseMode(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeSuffix):
		return ModeSuffix
	case string(ModeOverwrite):
		return ModeOverwrite
	default:
		log.Warn().Str("strategy", raw).Msg("Unknown duplicate strategy, defaulting to 'suffix'")
		return ModeSuffix
	}
}

// Candidate is one container awaiting a registry name.
type Candidate struct {
	ResourceID string // short container id
	BaseName   string
}

// Assignment is a name held by a container during the previous pass.
type Assignment struct {
	ServerName string
	ResourceID string
}

// Assigner hands out unique names for one pass. It is not safe for concurrent use.
type Assigner struct {
	mode       Mode
	groups     map[string][]string // base name -> resource ids in batch order
	byName     map[string]Assignment
	byResource map[string]Assignment
	inRegistry func(name string) bool
	claimed    map[string]struct{}

	renameOnRelabel bool
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithRenameOnRelabel drops a container's previous name once it no longer
// derives from the container's current base name. By default a container keeps
// its previous name for as long as it runs.
func WithRenameOnRelabel() Option {
	return func(a *Assigner) { a.renameOnRelabel = true }
}

// NewAssigner prepares name assignment for batch, which must already be sorted by
// resource id. prior holds the previous pass's names; inRegistry reports whether
// a name currently exists in the registry.
func NewAssigner(mode Mode, batch []Candidate, prior []Assignment, inRegistry func(name string) bool, opts ...Option) *Assigner {
	a := &Assigner{
		mode:       mode,
		groups:     make(map[string][]string),
		byName:     make(map[string]Assignment, len(prior)),
		byResource: make(map[string]Assignment, len(prior)),
		inRegistry: inRegistry,
		claimed:    make(map[string]struct{}),
	}
	if a.inRegistry == nil {
		a.inRegistry = func(string) bool { return false }
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, c := range batch {
		a.groups[c.BaseName] = append(a.groups[c.BaseName], c.ResourceID)
	}
	for _, p := range prior {
		if _, ok := a.byName[p.ServerName]; !ok {
			a.byName[p.ServerName] = p
		}
		if _, ok := a.byResource[p.ResourceID]; !ok {
			a.byResource[p.ResourceID] = p
		}
	}
	return a
}

// Choose returns the name c should be registered under. It does not claim it;
// call Claim once the name has actually been applied.
func (a *Assigner) Choose(c Candidate) string {
	if a.mode == ModeOverwrite {
		return c.BaseName
	}

	suffix := c.ResourceID
	if len(suffix) > SuffixLength {
		suffix = suffix[:SuffixLength]
	}
	withSuffix := c.BaseName + "-" + suffix

	if prev, ok := a.byResource[c.ResourceID]; ok && !a.isClaimed(prev.ServerName) {
		if !a.renameOnRelabel || prev.ServerName == c.BaseName || strings.HasPrefix(prev.ServerName, withSuffix) {
			return prev.ServerName
		}
	}

	candidate := c.BaseName
	if group := a.groups[c.BaseName]; len(group) > 1 && group[0] != c.ResourceID {
		candidate = withSuffix
	}

	if !a.conflicts(candidate, c.ResourceID) {
		return candidate
	}
	if !a.conflicts(withSuffix, c.ResourceID) {
		return withSuffix
	}
	for n := 1; ; n++ {
		name := withSuffix + "-" + strconv.Itoa(n)
		if !a.conflicts(name, c.ResourceID) {
			return name
		}
	}
}

// Claim marks name as taken for the rest of the pass.
func (a *Assigner) Claim(name string) {
	a.claimed[name] = struct{}{}
}

func (a *Assigner) isClaimed(name string) bool {
	_, ok := a.claimed[name]
	return ok
}

// conflicts reports whether name is claimed this pass, or exists in the registry
// without having belonged to resourceID in the previous pass.
func (a *Assigner) conflicts(name, resourceID string) bool {
	if a.isClaimed(name) {
		return true
	}
	if !a.inRegistry(name) {
		return false
	}
	prev, ok := a.byName[name]
	return !ok || prev.ResourceID != resourceID
}

// Assign chooses and claims a name for every candidate in order. The result maps
// resource id to server name. In ModeOverwrite several ids may share a name.
func Assign(mode Mode, batch []Candidate, prior []Assignment, inRegistry func(name string) bool, opts ...Option) map[string]string {
	a := NewAssigner(mode, batch, prior, inRegistry, opts...)
	out := make(map[string]string, len(batch))
	for _, c := range batch {
		name := a.Choose(c)
		a.Claim(name)
		out[c.ResourceID] = name
	}
	return out
}
