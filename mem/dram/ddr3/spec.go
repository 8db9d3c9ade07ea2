// Package ddr3 provides a minimal DDR3-like standard: its level hierarchy,
// command classification, and address mapping. It carries just enough of the
// standard for request scheduling and row-buffer bookkeeping; electrical
// timing is not modeled here.
package ddr3

import (
	"github.com/tracelab/memhier/mem/dram"
)

// The levels of the DDR3 address vector.
const (
	LevelChannel = iota
	LevelRank
	LevelBank
	LevelRow
	LevelColumn

	numLevels
)

// The DDR3 commands the scheduler core cares about.
const (
	CmdACT dram.Command = iota
	CmdPRE
	CmdPREA
	CmdRD
	CmdWR
	CmdRDA
	CmdWRA
	CmdREF
)

var commandScope = map[dram.Command]int{
	CmdACT:  LevelRow,
	CmdPRE:  LevelBank,
	CmdPREA: LevelRank,
	CmdRD:   LevelColumn,
	CmdWR:   LevelColumn,
	CmdRDA:  LevelColumn,
	CmdWRA:  LevelColumn,
	CmdREF:  LevelRank,
}

// Spec implements dram.Spec for DDR3.
type Spec struct{}

// NewSpec returns the DDR3 spec.
func NewSpec() Spec {
	return Spec{}
}

// NumLevels returns the number of address-vector levels.
func (Spec) NumLevels() int {
	return numLevels
}

// RowLevel returns the index of the row level.
func (Spec) RowLevel() int {
	return LevelRow
}

// Scope returns the deepest level a command affects.
func (Spec) Scope(cmd dram.Command) int {
	scope, ok := commandScope[cmd]
	if !ok {
		panic("unknown ddr3 command")
	}
	return scope
}

// IsOpening reports whether the command activates a row.
func (Spec) IsOpening(cmd dram.Command) bool {
	return cmd == CmdACT
}

// IsAccessing reports whether the command reads or writes an open row.
func (Spec) IsAccessing(cmd dram.Command) bool {
	switch cmd {
	case CmdRD, CmdWR, CmdRDA, CmdWRA:
		return true
	}
	return false
}

// IsClosing reports whether the command precharges one or more rows.
func (Spec) IsClosing(cmd dram.Command) bool {
	switch cmd {
	case CmdPRE, CmdPREA, CmdRDA, CmdWRA:
		return true
	}
	return false
}

// PrechargeCommand returns PRE.
func (Spec) PrechargeCommand() dram.Command {
	return CmdPRE
}
