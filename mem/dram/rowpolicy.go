package dram

import (
	"github.com/tracelab/memhier/mem"
)

// RowPolicyKind selects the row precharge policy.
type RowPolicyKind int

// The row policies a controller can run.
const (
	Closed RowPolicyKind = iota
	ClosedAP
	Opened
	Timeout
)

var rowPolicyKindByName = map[string]RowPolicyKind{
	"Closed":   Closed,
	"ClosedAP": ClosedAP,
	"Opened":   Opened,
	"Timeout":  Timeout,
}

// RowPolicyKindByName resolves a configuration string to a policy kind.
func RowPolicyKindByName(name string) (RowPolicyKind, bool) {
	kind, ok := rowPolicyKindByName[name]
	return kind, ok
}

// DefaultRowPolicyTimeout is how long a row may sit idle before the Timeout
// policy closes it.
const DefaultRowPolicyTimeout mem.Cycle = 50

// RowPolicy picks rows to precharge.
type RowPolicy struct {
	ctrl     Controller
	rowTable *RowTable
	kind     RowPolicyKind
	timeout  mem.Cycle
}

// NewRowPolicy creates a row policy over the controller's row table.
func NewRowPolicy(
	ctrl Controller,
	rowTable *RowTable,
	kind RowPolicyKind,
) *RowPolicy {
	return &RowPolicy{
		ctrl:     ctrl,
		rowTable: rowTable,
		kind:     kind,
		timeout:  DefaultRowPolicyTimeout,
	}
}

// WithTimeout overrides the Timeout policy's idle threshold.
func (p *RowPolicy) WithTimeout(timeout mem.Cycle) *RowPolicy {
	p.timeout = timeout
	return p
}

// GetVictim returns the rowgroup that cmd should precharge, or nil when no
// row should be closed this cycle. Only rowgroups for which the controller
// can actually issue cmd are returned.
//
// Closed and ClosedAP share the selection; ClosedAP relies on the DRAM
// command itself to auto-precharge. Opened never forces a precharge. Timeout
// closes the first row that has been idle for at least the timeout.
func (p *RowPolicy) GetVictim(cmd Command) []int {
	switch p.kind {
	case Closed, ClosedAP:
		for _, entry := range p.rowTable.Entries() {
			if !p.ctrl.IsCmdReady(cmd, entry.Rowgroup) {
				continue
			}
			return entry.Rowgroup
		}
		return nil

	case Opened:
		return nil

	case Timeout:
		for _, entry := range p.rowTable.Entries() {
			if p.ctrl.Clock()-entry.Timestamp < p.timeout {
				continue
			}
			if !p.ctrl.IsCmdReady(cmd, entry.Rowgroup) {
				continue
			}
			return entry.Rowgroup
		}
		return nil
	}

	return nil
}
