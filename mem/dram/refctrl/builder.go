package refctrl

import (
	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/dram"
	"github.com/tracelab/memhier/mem/dram/ddr3"
	"github.com/tracelab/memhier/stats"
)

// Builder can build reference controllers.
type Builder struct {
	registry *stats.Registry

	mapper   dram.AddressMapper
	queueCap int

	schedulerKind    dram.SchedulerKind
	rowPolicyKind    dram.RowPolicyKind
	rowPolicyTimeout mem.Cycle

	rowHitLatency      mem.Cycle
	rowMissLatency     mem.Cycle
	rowConflictLatency mem.Cycle
}

// MakeBuilder creates a builder with the default configuration: FRFCFS
// scheduling, Timeout row policy, and a 32-entry pending queue.
func MakeBuilder() Builder {
	return Builder{
		mapper:             ddr3.MakeMapper(),
		queueCap:           32,
		schedulerKind:      dram.FRFCFS,
		rowPolicyKind:      dram.Timeout,
		rowPolicyTimeout:   dram.DefaultRowPolicyTimeout,
		rowHitLatency:      20,
		rowMissLatency:     40,
		rowConflictLatency: 60,
	}
}

// WithStatsRegistry sets the registry the controller's counters register in.
func (b Builder) WithStatsRegistry(registry *stats.Registry) Builder {
	b.registry = registry
	return b
}

// WithAddressMapper sets the address mapper.
func (b Builder) WithAddressMapper(mapper dram.AddressMapper) Builder {
	b.mapper = mapper
	return b
}

// WithQueueCap sets the pending-queue capacity.
func (b Builder) WithQueueCap(n int) Builder {
	b.queueCap = n
	return b
}

// WithSchedulerKind sets the scheduling policy.
func (b Builder) WithSchedulerKind(kind dram.SchedulerKind) Builder {
	b.schedulerKind = kind
	return b
}

// WithRowPolicyKind sets the row precharge policy.
func (b Builder) WithRowPolicyKind(kind dram.RowPolicyKind) Builder {
	b.rowPolicyKind = kind
	return b
}

// WithRowPolicyTimeout sets the Timeout policy's idle threshold.
func (b Builder) WithRowPolicyTimeout(timeout mem.Cycle) Builder {
	b.rowPolicyTimeout = timeout
	return b
}

// WithServiceLatencies sets the row hit, row miss, and row conflict service
// latencies.
func (b Builder) WithServiceLatencies(hit, miss, conflict mem.Cycle) Builder {
	b.rowHitLatency = hit
	b.rowMissLatency = miss
	b.rowConflictLatency = conflict
	return b
}

// Build builds a controller.
func (b Builder) Build(name string) *Comp {
	if b.queueCap <= 0 {
		panic("a controller needs a positive queue capacity")
	}

	c := &Comp{
		name:               name,
		spec:               ddr3.NewSpec(),
		mapper:             b.mapper,
		queueCap:           b.queueCap,
		bankBusyUntil:      make(map[string]mem.Cycle),
		rowHitLatency:      b.rowHitLatency,
		rowMissLatency:     b.rowMissLatency,
		rowConflictLatency: b.rowConflictLatency,
	}

	c.rowTable = dram.NewRowTable(c.spec)
	c.scheduler = dram.NewScheduler(c, b.schedulerKind)
	c.rowPolicy = dram.NewRowPolicy(c, c.rowTable, b.rowPolicyKind).
		WithTimeout(b.rowPolicyTimeout)

	b.registerStats(c)

	return c
}

func (b Builder) registerStats(c *Comp) {
	registry := b.registry
	if registry == nil {
		registry = stats.NewRegistry()
	}

	c.statRowHits = registry.Scalar(
		c.name+"_row_hits", "requests served from an open row")
	c.statRowMisses = registry.Scalar(
		c.name+"_row_misses", "requests that had to open a row")
	c.statRowConflicts = registry.Scalar(
		c.name+"_row_conflicts", "requests that had to close another row")
	c.statReadsServed = registry.Scalar(
		c.name+"_reads_served", "read requests completed")
	c.statWritesServed = registry.Scalar(
		c.name+"_writes_served", "write requests completed")
	c.statRefusals = registry.Scalar(
		c.name+"_queue_refusals", "requests refused because the queue was full")
}
