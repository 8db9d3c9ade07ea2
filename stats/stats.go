// Package stats collects named scalar counters from simulator components and
// writes them out at the end of a run.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// A Scalar is a single named counter.
type Scalar struct {
	name  string
	desc  string
	value int64
}

// Name returns the counter's registered name.
func (s *Scalar) Name() string { return s.name }

// Desc returns the counter's description.
func (s *Scalar) Desc() string { return s.desc }

// Value returns the current count.
func (s *Scalar) Value() int64 { return s.value }

// Inc adds one.
func (s *Scalar) Inc() { s.value++ }

// Add adds n.
func (s *Scalar) Add(n int64) { s.value += n }

// A Registry owns the counters of one simulation.
type Registry struct {
	mu      sync.Mutex
	scalars map[string]*Scalar
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scalars: make(map[string]*Scalar),
	}
}

// Scalar registers a counter and returns it. Registering the same name twice
// returns the counter registered first.
func (r *Registry) Scalar(name, desc string) *Scalar {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scalars[name]; ok {
		return s
	}

	s := &Scalar{name: name, desc: desc}
	r.scalars[name] = s
	r.order = append(r.order, name)

	return s
}

// Lookup returns a registered counter by name.
func (r *Registry) Lookup(name string) (*Scalar, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.scalars[name]
	return s, ok
}

// All returns the registered counters in registration order.
func (r *Registry) All() []*Scalar {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Scalar, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.scalars[name])
	}

	return out
}

// Dump writes all counters as text, one per line, sorted by name.
func (r *Registry) Dump(w io.Writer) {
	all := r.All()
	sort.Slice(all, func(i, j int) bool {
		return all[i].name < all[j].name
	})

	for _, s := range all {
		fmt.Fprintf(w, "%-40s %12d # %s\n", s.name, s.value, s.desc)
	}
}
