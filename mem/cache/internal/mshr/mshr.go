// Package mshr tracks outstanding cache misses so that later accesses to the
// same block merge instead of issuing duplicate fills.
package mshr

import (
	"fmt"

	"github.com/tracelab/memhier/mem/cache/internal/tagging"
)

// An Entry records one outstanding miss. Block is the locked line the fill
// will land in.
type Entry struct {
	Address uint64 // block-aligned
	Block   *tagging.Block
}

// MSHR is a bounded table of outstanding misses.
type MSHR struct {
	Capacity int
	Entries  []*Entry
}

// NewMSHR creates an MSHR with the given number of entries.
func NewMSHR(capacity int) *MSHR {
	return &MSHR{
		Capacity: capacity,
	}
}

// Lookup returns the entry for a block-aligned address.
func (m *MSHR) Lookup(addr uint64) (*Entry, bool) {
	for _, e := range m.Entries {
		if e.Address == addr {
			return e, true
		}
	}

	return nil, false
}

// Add records a new outstanding miss. Adding a duplicate address or adding to
// a full table is a bug in the caller.
func (m *MSHR) Add(addr uint64, block *tagging.Block) *Entry {
	if _, found := m.Lookup(addr); found {
		panic(fmt.Sprintf("mshr already holds an entry for 0x%x", addr))
	}

	if m.IsFull() {
		panic("adding to a full mshr")
	}

	e := &Entry{Address: addr, Block: block}
	m.Entries = append(m.Entries, e)

	return e
}

// Remove drops the entry for a block-aligned address, reporting whether one
// existed.
func (m *MSHR) Remove(addr uint64) bool {
	for i, e := range m.Entries {
		if e.Address == addr {
			m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
			return true
		}
	}

	return false
}

// IsFull reports whether no more misses can be tracked.
func (m *MSHR) IsFull() bool {
	return len(m.Entries) >= m.Capacity
}

// Reset drops all entries.
func (m *MSHR) Reset() {
	m.Entries = nil
}
