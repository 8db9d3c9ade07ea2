package cache

import (
	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/cache/internal/mshr"
	"github.com/tracelab/memhier/mem/cache/internal/tagging"
	"github.com/tracelab/memhier/stats"
)

var defaultHitLatency = map[Level]mem.Cycle{
	L1: 4,
	L2: 12,
	L3: 40,
}

var defaultStructuralLatency = map[Level]mem.Cycle{
	L1: 4,
	L2: 8,
	L3: 28,
}

// Builder can build cache levels.
type Builder struct {
	system   *System
	registry *stats.Registry

	level             Level
	size              int
	assoc             int
	blockSize         int
	mshrEntryNum      int
	hitLatency        mem.Cycle
	structuralLatency mem.Cycle
	victimFinder      tagging.VictimFinder
}

// MakeBuilder creates a builder with default configuration: a 32 KiB, 8-way
// L3 with 64-byte blocks and 16 MSHR entries.
func MakeBuilder() Builder {
	return Builder{
		level:        L3,
		size:         32768,
		assoc:        8,
		blockSize:    64,
		mshrEntryNum: 16,
	}
}

// WithSystem sets the cache system the level belongs to.
func (b Builder) WithSystem(system *System) Builder {
	b.system = system
	return b
}

// WithStatsRegistry sets the registry the level's counters are registered in.
func (b Builder) WithStatsRegistry(registry *stats.Registry) Builder {
	b.registry = registry
	return b
}

// WithLevel sets the hierarchy level, which also selects the default
// latencies.
func (b Builder) WithLevel(level Level) Builder {
	b.level = level
	return b
}

// WithSize sets the capacity of the cache in bytes.
func (b Builder) WithSize(size int) Builder {
	b.size = size
	return b
}

// WithAssoc sets the associativity.
func (b Builder) WithAssoc(assoc int) Builder {
	b.assoc = assoc
	return b
}

// WithBlockSize sets the block size in bytes.
func (b Builder) WithBlockSize(blockSize int) Builder {
	b.blockSize = blockSize
	return b
}

// WithMSHREntryNum sets the number of outstanding misses the level tracks.
func (b Builder) WithMSHREntryNum(n int) Builder {
	b.mshrEntryNum = n
	return b
}

// WithHitLatency overrides the cumulative hit latency of the level.
func (b Builder) WithHitLatency(latency mem.Cycle) Builder {
	b.hitLatency = latency
	return b
}

// WithStructuralLatency overrides the per-step invalidation latency of the
// level.
func (b Builder) WithStructuralLatency(latency mem.Cycle) Builder {
	b.structuralLatency = latency
	return b
}

// WithVictimFinder overrides the replacement policy.
func (b Builder) WithVictimFinder(vf tagging.VictimFinder) Builder {
	b.victimFinder = vf
	return b
}

// Build builds a cache level.
func (b Builder) Build(name string) *Comp {
	if b.system == nil {
		panic("a cache must be built with a system")
	}

	if b.mshrEntryNum <= 0 {
		panic("a cache needs at least one mshr entry")
	}

	c := &Comp{
		name:         name,
		level:        b.level,
		system:       b.system,
		directory:    tagging.NewDirectory(b.size, b.assoc, b.blockSize),
		victimFinder: b.victimFinder,
		mshr:         mshr.NewMSHR(b.mshrEntryNum),
		latency:      b.hitLatency,
		latencyEach:  b.structuralLatency,
	}

	if c.victimFinder == nil {
		c.victimFinder = tagging.NewLRUVictimFinder()
	}
	if c.latency == 0 {
		c.latency = defaultHitLatency[b.level]
	}
	if c.latencyEach == 0 {
		c.latencyEach = defaultStructuralLatency[b.level]
	}

	b.registerStats(c)

	return c
}

func (b Builder) registerStats(c *Comp) {
	registry := b.registry
	if registry == nil {
		registry = stats.NewRegistry()
	}

	c.statTotalAccess = registry.Scalar(
		c.name+"_cache_total_access", "cache total access count")
	c.statReadAccess = registry.Scalar(
		c.name+"_cache_read_access", "cache read access count")
	c.statWriteAccess = registry.Scalar(
		c.name+"_cache_write_access", "cache write access count")
	c.statTotalMiss = registry.Scalar(
		c.name+"_cache_total_miss", "cache total miss count")
	c.statReadMiss = registry.Scalar(
		c.name+"_cache_read_miss", "cache read miss count")
	c.statWriteMiss = registry.Scalar(
		c.name+"_cache_write_miss", "cache write miss count")
	c.statEviction = registry.Scalar(
		c.name+"_cache_eviction",
		"number of evictions from this level to the lower level")
	c.statMSHRHit = registry.Scalar(
		c.name+"_cache_mshr_hit", "cache mshr hit count")
	c.statMSHRUnavailable = registry.Scalar(
		c.name+"_cache_mshr_unavailable", "cache mshr not available count")
	c.statSetUnavailable = registry.Scalar(
		c.name+"_cache_set_unavailable", "cache set not available count")
}
