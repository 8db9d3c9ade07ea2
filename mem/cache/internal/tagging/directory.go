// Package tagging tracks which blocks live in which set of a set-associative
// cache and keeps per-set LRU order.
package tagging

import (
	"fmt"
	"math/bits"
)

// A Block is the record kept for one cache line. Pointers to blocks are
// stable for the lifetime of the directory, so they serve as line handles.
type Block struct {
	Addr  uint64 // block-aligned address
	Tag   uint64
	SetID int
	WayID int

	IsValid  bool
	IsLocked bool // a fill is outstanding; the block must not move
	IsDirty  bool
}

// A Set is a group of ways an address can map to. LRUQueue holds way ids,
// front is the least recently used way.
type Set struct {
	Blocks   []*Block
	LRUQueue []int
}

// IsFull reports whether every way holds a valid block.
func (s *Set) IsFull() bool {
	for _, b := range s.Blocks {
		if !b.IsValid {
			return false
		}
	}
	return true
}

// AllLocked reports whether the set is full and every block is locked.
func (s *Set) AllLocked() bool {
	for _, b := range s.Blocks {
		if !b.IsValid || !b.IsLocked {
			return false
		}
	}
	return true
}

// FreeBlock returns an invalid way, if any.
func (s *Set) FreeBlock() (*Block, bool) {
	for _, wayID := range s.LRUQueue {
		if !s.Blocks[wayID].IsValid {
			return s.Blocks[wayID], true
		}
	}
	return nil, false
}

// A Directory maps addresses to sets and blocks.
type Directory struct {
	NumSets   int
	NumWays   int
	BlockSize int

	indexOffset uint
	tagOffset   uint
	indexMask   uint64

	Sets []Set
}

// NewDirectory creates a directory for a cache of the given geometry. Size,
// associativity, and block size must be powers of two and size must not be
// smaller than the block size.
func NewDirectory(size, assoc, blockSize int) *Directory {
	mustBePowerOfTwo("size", size)
	mustBePowerOfTwo("assoc", assoc)
	mustBePowerOfTwo("block size", blockSize)
	if size < blockSize {
		panic(fmt.Sprintf(
			"cache size %d is smaller than block size %d", size, blockSize))
	}

	numSets := size / (blockSize * assoc)

	d := &Directory{
		NumSets:     numSets,
		NumWays:     assoc,
		BlockSize:   blockSize,
		indexOffset: uint(bits.TrailingZeros64(uint64(blockSize))),
		indexMask:   uint64(numSets - 1),
	}
	d.tagOffset = uint(bits.TrailingZeros64(uint64(numSets))) + d.indexOffset

	d.Reset()

	return d
}

func mustBePowerOfTwo(what string, v int) {
	if v <= 0 || v&(v-1) != 0 {
		panic(fmt.Sprintf("cache %s %d is not a power of two", what, v))
	}
}

// Reset drops all blocks and restores the default LRU order.
func (d *Directory) Reset() {
	d.Sets = make([]Set, d.NumSets)
	for setID := range d.Sets {
		set := &d.Sets[setID]
		set.Blocks = make([]*Block, d.NumWays)
		set.LRUQueue = make([]int, d.NumWays)
		for wayID := 0; wayID < d.NumWays; wayID++ {
			set.Blocks[wayID] = &Block{SetID: setID, WayID: wayID}
			set.LRUQueue[wayID] = wayID
		}
	}
}

// Index returns the set index of an address.
func (d *Directory) Index(addr uint64) uint64 {
	return (addr >> d.indexOffset) & d.indexMask
}

// Tag returns the tag bits of an address.
func (d *Directory) Tag(addr uint64) uint64 {
	return addr >> d.tagOffset
}

// Align returns the block-aligned address.
func (d *Directory) Align(addr uint64) uint64 {
	return addr &^ uint64(d.BlockSize-1)
}

// Set returns the set an address maps to.
func (d *Directory) Set(addr uint64) *Set {
	return &d.Sets[d.Index(addr)]
}

// Lookup finds the valid block holding an address, locked or not.
func (d *Directory) Lookup(addr uint64) (*Block, bool) {
	set := d.Set(addr)
	tag := d.Tag(addr)

	for _, b := range set.Blocks {
		if b.IsValid && b.Tag == tag {
			return b, true
		}
	}

	return nil, false
}

// Visit moves a block to the most-recently-used end of its set.
func (d *Directory) Visit(b *Block) {
	set := &d.Sets[b.SetID]
	for i, wayID := range set.LRUQueue {
		if wayID == b.WayID {
			set.LRUQueue = append(set.LRUQueue[:i], set.LRUQueue[i+1:]...)
			set.LRUQueue = append(set.LRUQueue, b.WayID)
			return
		}
	}

	panic("block is not in its set's LRU queue")
}

// Fill claims a block slot for an address. The slot must be invalid. The new
// block starts locked and clean and becomes the most recently used.
func (d *Directory) Fill(b *Block, addr uint64) {
	if b.IsValid {
		panic("filling a slot that still holds a block")
	}

	b.Addr = d.Align(addr)
	b.Tag = d.Tag(addr)
	b.IsValid = true
	b.IsLocked = true
	b.IsDirty = false

	d.Visit(b)
}

// Erase removes a block from the directory.
func (d *Directory) Erase(b *Block) {
	b.IsValid = false
	b.IsLocked = false
	b.IsDirty = false
}
