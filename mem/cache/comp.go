// Package cache models one write-back, set-associative level of a cache
// hierarchy with non-blocking miss handling.
package cache

import (
	"fmt"

	"github.com/tracelab/memhier/hooking"
	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/cache/internal/mshr"
	"github.com/tracelab/memhier/mem/cache/internal/tagging"
	"github.com/tracelab/memhier/stats"
)

// Level identifies the position of a cache in the hierarchy.
type Level int

// The levels a hierarchy can have.
const (
	L1 Level = iota
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	}
	return fmt.Sprintf("L%d", int(l)+1)
}

// Hook positions of a cache.
var (
	HookPosHit       = &hooking.HookPos{Name: "CacheHit"}
	HookPosMiss      = &hooking.HookPos{Name: "CacheMiss"}
	HookPosMSHRHit   = &hooking.HookPos{Name: "CacheMSHRHit"}
	HookPosEviction  = &hooking.HookPos{Name: "CacheEviction"}
	HookPosWriteback = &hooking.HookPos{Name: "CacheWriteback"}
)

// Comp is one cache level. Levels are wired into a hierarchy with
// ConcatLower; all levels share one System.
type Comp struct {
	hooking.HookableBase

	name  string
	level Level

	system       *System
	directory    *tagging.Directory
	victimFinder tagging.VictimFinder
	mshr         *mshr.MSHR
	retryList    []*mem.Request

	lower  *Comp
	higher []*Comp

	// latency is the cumulative hit latency of this level; latencyEach is
	// the structural latency one invalidation walk step costs here.
	latency     mem.Cycle
	latencyEach mem.Cycle

	statTotalAccess     *stats.Scalar
	statReadAccess      *stats.Scalar
	statWriteAccess     *stats.Scalar
	statTotalMiss       *stats.Scalar
	statReadMiss        *stats.Scalar
	statWriteMiss       *stats.Scalar
	statEviction        *stats.Scalar
	statMSHRHit         *stats.Scalar
	statMSHRUnavailable *stats.Scalar
	statSetUnavailable  *stats.Scalar
}

// Name returns the name of the cache.
func (c *Comp) Name() string {
	return c.name
}

// Level returns the hierarchy level of the cache.
func (c *Comp) Level() Level {
	return c.level
}

// ConcatLower wires this cache on top of lower. The lower cache keeps an
// upward link so invalidations and fill callbacks can climb the hierarchy.
func (c *Comp) ConcatLower(lower *Comp) {
	if lower == nil {
		panic("concatenating a nil lower cache")
	}

	c.lower = lower
	lower.higher = append(lower.higher, c)
}

func (c *Comp) isFirstLevel() bool {
	return len(c.higher) == 0
}

func (c *Comp) isLastLevel() bool {
	return c.lower == nil
}

// Send dispatches one request to this level. It returns true when the
// request is absorbed (hit, MSHR merge, or newly tracked miss) and false when
// the level is structurally out of resources and the caller must retry later.
func (c *Comp) Send(req *mem.Request) bool {
	c.statTotalAccess.Inc()
	if req.Type == mem.WriteReq {
		c.statWriteAccess.Inc()
	} else {
		c.statReadAccess.Inc()
	}

	if block, found := c.directory.Lookup(req.Addr); found && !block.IsLocked {
		c.hit(block, req)
		return true
	}

	return c.miss(req)
}

func (c *Comp) hit(block *tagging.Block, req *mem.Request) {
	block.IsDirty = block.IsDirty || req.Type == mem.WriteReq
	c.directory.Visit(block)

	c.system.scheduleHit(c.system.clk+c.latency, req)

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosHit, Item: req})
}

func (c *Comp) miss(req *mem.Request) bool {
	c.statTotalMiss.Inc()
	if req.Type == mem.WriteReq {
		c.statWriteMiss.Inc()
	} else {
		c.statReadMiss.Inc()
	}

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosMiss, Item: req})

	dirty := req.Type == mem.WriteReq

	// A write miss fetches the block; only a read travels downward.
	if req.Type == mem.WriteReq {
		req.Type = mem.ReadReq
	}

	aligned := c.directory.Align(req.Addr)

	if entry, found := c.mshr.Lookup(aligned); found {
		c.statMSHRHit.Inc()
		entry.Block.IsDirty = entry.Block.IsDirty || dirty
		c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosMSHRHit, Item: req})
		return true
	}

	if c.mshr.IsFull() {
		c.statMSHRUnavailable.Inc()
		return false
	}

	set := c.directory.Set(req.Addr)
	if set.AllLocked() {
		c.statSetUnavailable.Inc()
		return false
	}

	newBlock, ok := c.allocateLine(set, req.Addr)
	if !ok {
		return false
	}

	newBlock.IsDirty = dirty
	c.mshr.Add(aligned, newBlock)

	if !c.isLastLevel() {
		if !c.lower.Send(req) {
			c.retryList = append(c.retryList, req)
		}
	} else {
		c.system.scheduleMemory(c.system.clk+c.latency, req)
	}

	return true
}

// RefreshLRULower re-MRUs the line for addr at this level and ORs in dirty,
// without touching the lock bit. A higher cache calls this when it evicts a
// block that must stay resident below.
func (c *Comp) RefreshLRULower(addr uint64, dirty bool) {
	block, found := c.directory.Lookup(addr)
	if !found {
		panic(fmt.Sprintf(
			"%s: refreshing 0x%x, which is not resident", c.name, addr))
	}

	block.IsDirty = block.IsDirty || dirty
	c.directory.Visit(block)
}

// Invalidate removes the block for addr from this level and, recursively,
// from every higher level. It returns the latency of the walk and whether any
// removed copy was dirty.
func (c *Comp) Invalidate(addr uint64) (delay mem.Cycle, dirty bool) {
	delay = c.latencyEach

	block, found := c.directory.Lookup(addr)
	if !found {
		// Inclusion: the block cannot be above if it is not here.
		return delay, false
	}

	if block.IsLocked {
		panic(fmt.Sprintf("%s: invalidating locked block 0x%x", c.name, addr))
	}

	localDirty := block.IsDirty
	c.directory.Erase(block)

	if len(c.higher) == 0 {
		return delay, localDirty
	}

	maxDelay := delay
	dirty = localDirty
	for _, hc := range c.higher {
		childDelay, childDirty := hc.Invalidate(addr)
		if childDirty {
			// The child's dirty copy writes back through this level.
			maxDelay = max(maxDelay, delay+childDelay*2)
		} else {
			maxDelay = max(maxDelay, delay+childDelay)
		}
		dirty = dirty || childDirty
	}

	return maxDelay, dirty
}

// CheckUnlock reports whether addr is evictable from the point of view of
// this level: the block is either absent, or unlocked here and in every
// higher level.
func (c *Comp) CheckUnlock(addr uint64) bool {
	block, found := c.directory.Lookup(addr)
	if !found {
		return true
	}

	if block.IsLocked {
		return false
	}

	for _, hc := range c.higher {
		if !hc.CheckUnlock(addr) {
			return false
		}
	}

	return true
}

func (c *Comp) evict(victim *tagging.Block) {
	c.statEviction.Inc()

	addr := victim.Addr
	dirty := victim.IsDirty
	var invalidateTime mem.Cycle

	for _, hc := range c.higher {
		childDelay, childDirty := hc.Invalidate(addr)

		writeback := mem.Cycle(0)
		if childDirty {
			writeback = c.latencyEach
		}
		invalidateTime = max(invalidateTime, childDelay+writeback)

		dirty = dirty || childDirty
	}

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosEviction, Item: victim})

	if !c.isLastLevel() {
		// The block stays resident below; only its LRU position and
		// dirty bit move down.
		c.lower.RefreshLRULower(addr, dirty)
	} else if dirty {
		writeReq := mem.NewRequest(addr, mem.WriteReq)
		c.system.scheduleMemory(
			c.system.clk+invalidateTime+c.latency, writeReq)
		c.InvokeHook(hooking.HookCtx{
			Domain: c, Pos: HookPosWriteback, Item: writeReq})
	}

	c.directory.Erase(victim)
}

func (c *Comp) allocateLine(
	set *tagging.Set,
	addr uint64,
) (*tagging.Block, bool) {
	if c.needEviction(set, addr) {
		victim, found := c.victimFinder.FindVictim(set, c.evictableAbove)
		if !found {
			return nil, false
		}
		c.evict(victim)
	}

	block, ok := set.FreeBlock()
	if !ok {
		panic(fmt.Sprintf("%s: no free way after eviction", c.name))
	}

	c.directory.Fill(block, addr)

	return block, true
}

func (c *Comp) evictableAbove(b *tagging.Block) bool {
	if c.isFirstLevel() {
		return true
	}

	for _, hc := range c.higher {
		if !hc.CheckUnlock(b.Addr) {
			return false
		}
	}

	return true
}

func (c *Comp) needEviction(set *tagging.Set, addr uint64) bool {
	tag := c.directory.Tag(addr)
	for _, b := range set.Blocks {
		if b.IsValid && b.Tag == tag {
			// The MSHR table covers every in-flight block, so an
			// allocation for a resident tag cannot happen.
			panic(fmt.Sprintf(
				"%s: allocating 0x%x, whose tag is already resident",
				c.name, addr))
		}
	}

	return set.IsFull()
}

// Callback completes a fill: the MSHR entry for the request's block is
// dropped, its line is unlocked, and every higher level does the same.
func (c *Comp) Callback(req *mem.Request) {
	aligned := c.directory.Align(req.Addr)

	if entry, found := c.mshr.Lookup(aligned); found {
		entry.Block.IsLocked = false
		c.mshr.Remove(aligned)
	}

	for _, hc := range c.higher {
		hc.Callback(req)
	}
}

// Tick advances this level: it ticks the chain below (stopping before the
// last level, whose pace the memory controller dictates) and re-sends
// requests the lower level refused earlier. Ticking the last level itself is
// a no-op.
func (c *Comp) Tick() {
	if c.isLastLevel() {
		return
	}

	if !c.lower.isLastLevel() {
		c.lower.Tick()
	}

	remaining := c.retryList[:0]
	for _, req := range c.retryList {
		if !c.lower.Send(req) {
			remaining = append(remaining, req)
		}
	}
	c.retryList = remaining
}
