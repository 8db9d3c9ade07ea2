// Package mem defines the request type exchanged between the cache hierarchy
// and the memory controller.
package mem

import (
	"github.com/rs/xid"
)

// Cycle is a point in, or a span of, simulated time measured in clock cycles.
type Cycle int64

// AccessType distinguishes reads from writes.
type AccessType int

// Access types that the hierarchy services.
const (
	ReadReq AccessType = iota
	WriteReq
)

func (t AccessType) String() string {
	if t == WriteReq {
		return "write"
	}
	return "read"
}

// A Request is one memory access traveling through the hierarchy. The same
// value is forwarded level to level; a write miss is downgraded to a read
// before it leaves the level that absorbed it.
type Request struct {
	ID     string
	Addr   uint64
	Type   AccessType
	CoreID int

	// Arrive is the cycle the request entered the controller's pending
	// queue. Schedulers break ties on it.
	Arrive Cycle

	// AddrVec is the address decomposed per the DRAM spec's levels
	// (channel, rank, bank, row, column, ...). It is populated by the
	// controller's address mapper before scheduling.
	AddrVec []int

	// Callback, if set, is invoked when the request completes.
	Callback func(*Request)
}

// NewRequest creates a request with a fresh ID.
func NewRequest(addr uint64, t AccessType) *Request {
	return &Request{
		ID:   xid.New().String(),
		Addr: addr,
		Type: t,
	}
}

// Rowgroup returns the leading portion of the address vector up to and
// including level scope. It identifies a bank or subarray independent of row.
func (r *Request) Rowgroup(scope int) []int {
	return r.AddrVec[:scope+1]
}
