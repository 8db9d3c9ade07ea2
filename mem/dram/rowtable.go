package dram

import (
	"fmt"
	"slices"

	"github.com/tracelab/memhier/mem"
)

// NoOpenRow is returned by GetOpenRow when a bank has no activated row.
const NoOpenRow = -1

// A RowTableEntry records the row currently open in one rowgroup.
type RowTableEntry struct {
	Rowgroup  []int
	Row       int
	Hits      int
	Timestamp mem.Cycle
}

// RowTable tracks, per rowgroup, which row is open, how often it has been
// hit, and when it was last touched. Entries are kept ordered by rowgroup so
// that policies iterating the table are deterministic.
type RowTable struct {
	spec    Spec
	entries []*RowTableEntry
}

// NewRowTable creates an empty row table for one channel.
func NewRowTable(spec Spec) *RowTable {
	return &RowTable{spec: spec}
}

// Entries returns the table's entries in rowgroup order.
func (t *RowTable) Entries() []*RowTableEntry {
	return t.entries
}

// Update applies one issued command to the table: opening commands insert an
// entry, accessing commands bump the hit count and timestamp, closing
// commands remove every entry within the command's scope. RDA and WRA close
// the bank they access, so their close scope is one level above the row.
func (t *RowTable) Update(cmd Command, addrVec []int, clk mem.Cycle) {
	rowLevel := t.spec.RowLevel()
	rowgroup := addrVec[:rowLevel]
	row := addrVec[rowLevel]

	if t.spec.IsOpening(cmd) {
		t.insert(rowgroup, row, clk)
	}

	if t.spec.IsAccessing(cmd) {
		entry := t.find(rowgroup)
		if entry == nil {
			panic(fmt.Sprintf(
				"accessing rowgroup %v, which has no open row", rowgroup))
		}
		if entry.Row != row {
			panic(fmt.Sprintf(
				"accessing row %d in rowgroup %v, but row %d is open",
				row, rowgroup, entry.Row))
		}

		entry.Hits++
		entry.Timestamp = clk
	}

	if t.spec.IsClosing(cmd) {
		var scope int
		if t.spec.IsAccessing(cmd) {
			scope = rowLevel - 1
		} else {
			scope = t.spec.Scope(cmd)
		}

		removed := 0
		t.entries = slices.DeleteFunc(t.entries, func(e *RowTableEntry) bool {
			if slices.Equal(e.Rowgroup[:scope+1], addrVec[:scope+1]) {
				removed++
				return true
			}
			return false
		})

		if removed == 0 {
			panic(fmt.Sprintf(
				"closing %v, but no matching row is open", addrVec[:scope+1]))
		}
	}
}

// GetHits returns the hit count of the rowgroup's entry. Unless toOpenedRow
// is set, the count only applies when the entry's row matches the vector's
// row.
func (t *RowTable) GetHits(addrVec []int, toOpenedRow bool) int {
	rowLevel := t.spec.RowLevel()
	rowgroup := addrVec[:rowLevel]
	row := addrVec[rowLevel]

	entry := t.find(rowgroup)
	if entry == nil {
		return 0
	}

	if !toOpenedRow && entry.Row != row {
		return 0
	}

	return entry.Hits
}

// GetOpenRow returns the row open in the vector's rowgroup, or NoOpenRow.
func (t *RowTable) GetOpenRow(addrVec []int) int {
	entry := t.find(addrVec[:t.spec.RowLevel()])
	if entry == nil {
		return NoOpenRow
	}

	return entry.Row
}

func (t *RowTable) find(rowgroup []int) *RowTableEntry {
	for _, e := range t.entries {
		if slices.Equal(e.Rowgroup, rowgroup) {
			return e
		}
	}

	return nil
}

func (t *RowTable) insert(rowgroup []int, row int, clk mem.Cycle) {
	if t.find(rowgroup) != nil {
		return
	}

	entry := &RowTableEntry{
		Rowgroup:  slices.Clone(rowgroup),
		Row:       row,
		Timestamp: clk,
	}

	pos, _ := slices.BinarySearchFunc(t.entries, entry,
		func(a, b *RowTableEntry) int {
			return slices.Compare(a.Rowgroup, b.Rowgroup)
		})
	t.entries = slices.Insert(t.entries, pos, entry)
}
