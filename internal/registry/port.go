// Package registry holds the routing table that proxies read server addresses from.
package registry

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress is returned by Add for addresses that cannot be dialled.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupported is returned by EnsurePreferred when the preferred order is read-only.
	ErrUnsupported = errors.New("preferred order is not mutable")
)

// Endpoint is a server address.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// String returns host:port.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Matches compares hosts case-insensitively and ports exactly.
func (e Endpoint) Matches(other Endpoint) bool {
	return e.Port == other.Port && strings.EqualFold(e.Host, other.Host)
}

// Entry is one named server in the table.
type Entry struct {
	Name     string   `json:"name"`
	Endpoint Endpoint `json:"endpoint"`
}

// Port is the mutable routing table the reconciler converges.
type Port interface {
	// Lookup returns the endpoint registered under name.
	Lookup(name string) (Endpoint, bool)
	// Add registers name. It fails if name exists or the endpoint is invalid.
	Add(name string, ep Endpoint) error
	// Remove unregisters name. Removing an absent name is not an error.
	Remove(name string) error
	// EnsurePreferred appends name to the preferred connection order if it is
	// missing. added is false when it was already present. Returns
	// ErrUnsupported when the order cannot be changed at runtime.
	EnsurePreferred(name string) (added bool, err error)
}

// Table is a Port that can also be listed, for reporting.
type Table interface {
	Port
	Entries() ([]Entry, error)
	PreferredOrder() ([]string, error)
}

// ValidateEndpoint rejects endpoints that can never be dialled.
func ValidateEndpoint(ep Endpoint) error {
	host := strings.TrimSpace(ep.Host)
	if host == "" || host != ep.Host || strings.ContainsAny(host, " \t\r\n/") {
		return fmt.Errorf("%w: host %q", ErrInvalidAddress, ep.Host)
	}
	if ep.Port < 1 || ep.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, ep.Port)
	}
	return nil
}
