package dram

import (
	"github.com/tracelab/memhier/mem"
)

// Controller is the narrow surface on which the scheduler and the row policy
// call back into the memory controller that owns them.
type Controller interface {
	// Clock returns the controller's current cycle.
	Clock() mem.Cycle

	// Spec returns the DRAM standard of the controller's channel.
	Spec() Spec

	// IsReady reports whether the bank a request targets can accept a
	// command this cycle.
	IsReady(req *mem.Request) bool

	// IsCmdReady reports whether cmd could be issued to the given
	// rowgroup this cycle.
	IsCmdReady(cmd Command, rowgroup []int) bool

	// IsRowHit reports whether the request targets the row currently open
	// in its bank.
	IsRowHit(req *mem.Request) bool

	// IsRowOpen reports whether any row is open in the request's bank.
	IsRowOpen(req *mem.Request) bool
}
