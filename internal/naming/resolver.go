// Package naming derives registry names and addresses from discovered containers.
package naming

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/uebliche/dockbridge/internal/discovery"
)

const (
	// DefaultPort is used when neither a port label nor a declared port is available.
	DefaultPort = 25565
	// FallbackHost is used for containers without a name.
	FallbackHost = "localhost"
)

// Identity is the resolved registry identity of one container.
type Identity struct {
	BaseName string
	Host     string
	Port     int
}

// Resolver maps containers to names and addresses using label overrides.
// All methods are total: malformed input degrades to a default.
type Resolver struct {
	NameLabel   string
	PortLabel   string
	DefaultPort int
}

// Resolve returns the base name, host and port for r.
func (rs Resolver) Resolve(r discovery.Resource) Identity {
	return Identity{
		BaseName: rs.BaseName(r),
		Host:     rs.Host(r),
		Port:     rs.Port(r),
	}
}

// BaseName prefers the name label, then the container name, then the id prefix.
func (rs Resolver) BaseName(r discovery.Resource) string {
	if v, ok := r.Labels[rs.NameLabel]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if name, ok := r.PrimaryName(); ok {
		return name
	}
	return r.ShortID()
}

// Port prefers the port label, then the first declared container port, then the default.
func (rs Resolver) Port(r discovery.Resource) int {
	if raw, ok := r.Labels[rs.PortLabel]; ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil {
			return port
		}
		log.Warn().
			Str("label", rs.PortLabel).
			Str("value", raw).
			Str("container", r.ShortID()).
			Msg("Invalid port label, falling back to exposed ports")
	}
	if len(r.Ports) > 0 && r.Ports[0].Private > 0 {
		return int(r.Ports[0].Private)
	}
	if rs.DefaultPort > 0 {
		return rs.DefaultPort
	}
	return DefaultPort
}

// Host is the container name, which resolves on the shared Docker network.
func (rs Resolver) Host(r discovery.Resource) string {
	if name, ok := r.PrimaryName(); ok {
		return name
	}
	return FallbackHost
}
