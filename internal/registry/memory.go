package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process routing table. It is safe for concurrent use.
type Memory struct {
	mu           sync.RWMutex
	servers      map[string]Endpoint
	order        []string
	orderMutable bool
}

// NewMemory creates an empty table. When orderMutable is false, EnsurePreferred
// reports ErrUnsupported for names not already in initialOrder.
func NewMemory(orderMutable bool, initialOrder ...string) *Memory {
	return &Memory{
		servers:      make(map[string]Endpoint),
		order:        append([]string(nil), initialOrder...),
		orderMutable: orderMutable,
	}
}

// Lookup implements Port.
func (m *Memory) Lookup(name string) (Endpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.servers[name]
	return ep, ok
}

// Add implements Port.
func (m *Memory) Add(name string, ep Endpoint) error {
	if err := ValidateEndpoint(ep); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[name]; exists {
		return fmt.Errorf("server %s already registered", name)
	}
	m.servers[name] = ep
	return nil
}

// Remove implements Port.
func (m *Memory) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.servers, name)
	return nil
}

// EnsurePreferred implements Port.
func (m *Memory) EnsurePreferred(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.order {
		if n == name {
			return false, nil
		}
	}
	if !m.orderMutable {
		return false, ErrUnsupported
	}
	m.order = append(m.order, name)
	return true, nil
}

// Entries implements Table. Entries are sorted by name.
func (m *Memory) Entries() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.servers))
	for name, ep := range m.servers {
		entries = append(entries, Entry{Name: name, Endpoint: ep})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// PreferredOrder implements Table.
func (m *Memory) PreferredOrder() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}
