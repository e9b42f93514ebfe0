// Package discovery finds the containers that should be exposed through the registry.
package discovery

import (
	"errors"
	"strings"
)

// ErrDiscoveryFailed means the inventory could not be queried. Callers must not
// treat it as "no containers match".
var ErrDiscoveryFailed = errors.New("discovery failed")

// UnknownID is the short id used for containers the inventory reported without an id.
const UnknownID = "unknown"

// Resource is a snapshot of one matching container.
type Resource struct {
	ID     string
	Names  []string
	Labels map[string]string
	Ports  []Port
}

// Port is a declared port mapping. Private is the container-side port.
type Port struct {
	Private  uint16
	Public   uint16
	Protocol string
}

// ShortID returns the first 12 characters of the container id.
func (r Resource) ShortID() string {
	if r.ID == "" {
		return UnknownID
	}
	if len(r.ID) > 12 {
		return r.ID[:12]
	}
	return r.ID
}

// PrimaryName returns the first container name without its leading slash.
func (r Resource) PrimaryName() (string, bool) {
	if len(r.Names) == 0 {
		return "", false
	}
	return strings.TrimPrefix(r.Names[0], "/"), true
}
