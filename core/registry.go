package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the mapping between Proc IDs, names and live Procs.
type Registry struct {
	mu sync.RWMutex

	// Maps proc ID to Proc
	procs map[ProcID]*Proc

	// Maps proc name to proc ID
	names map[string]ProcID

	// Counter for generating unique proc IDs
	counter uint32

	// Prefix used for generated names
	prefix string
}

// NewRegistry creates a new Registry. Procs registered without a name are
// called prefix-<id>.
func NewRegistry(prefix string) *Registry {
	if prefix == "" {
		prefix = "proc"
	}
	return &Registry{
		procs:  make(map[ProcID]*Proc),
		names:  make(map[string]ProcID),
		prefix: prefix,
	}
}

// allocate reserves an ID and a name and stores the Proc built by mk.
func (r *Registry) allocate(name string, mk func(id ProcID, name string) *Proc) (*Proc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		if _, exists := r.names[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
		}
	}

	r.counter++
	id := ProcID(r.counter)
	if name == "" {
		name = fmt.Sprintf("%s-%d", r.prefix, id)
		// A caller may have claimed the generated name explicitly
		if _, exists := r.names[name]; exists {
			name = fmt.Sprintf("%s-%d.%d", r.prefix, id, len(r.names))
		}
	}

	p := mk(id, name)
	r.procs[id] = p
	r.names[name] = id
	return p, nil
}

// Lookup retrieves a live Proc by ID.
func (r *Registry) Lookup(id ProcID) (*Proc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.procs[id]
	return p, exists
}

// LookupName retrieves a live Proc by name.
func (r *Registry) LookupName(name string) (*Proc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, exists := r.names[name]; exists {
		return r.procs[id], true
	}
	return nil, false
}

// Release removes a Proc and its name mapping.
func (r *Registry) Release(id ProcID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.procs[id]
	if !exists {
		return fmt.Errorf("%w: %d", ErrProcNotFound, id)
	}

	delete(r.procs, id)
	delete(r.names, p.name)
	return nil
}

// Len returns the number of live Procs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}

// List returns all live Procs ordered by ID.
func (r *Registry) List() []*Proc {
	r.mu.RLock()
	procs := make([]*Proc, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].id < procs[j].id })
	return procs
}
