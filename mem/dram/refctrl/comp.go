// Package refctrl provides a reference DDR3 memory controller built around
// the dram scheduler and row-table core. It models bank occupancy with a
// busy-until time per bank rather than a full command state machine, which is
// enough to drive a cache hierarchy end to end.
package refctrl

import (
	"fmt"

	"github.com/tracelab/memhier/hooking"
	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/dram"
	"github.com/tracelab/memhier/mem/dram/ddr3"
	"github.com/tracelab/memhier/stats"
)

// Hook positions of the controller.
var (
	HookPosIssue     = &hooking.HookPos{Name: "CtrlIssue"}
	HookPosComplete  = &hooking.HookPos{Name: "CtrlComplete"}
	HookPosPrecharge = &hooking.HookPos{Name: "CtrlPrecharge"}
)

type service struct {
	req    *mem.Request
	doneAt mem.Cycle
}

// Comp is the reference controller for one DDR3 channel.
type Comp struct {
	hooking.HookableBase

	name   string
	clk    mem.Cycle
	spec   ddr3.Spec
	mapper dram.AddressMapper

	scheduler *dram.Scheduler
	rowPolicy *dram.RowPolicy
	rowTable  *dram.RowTable

	queue    []*mem.Request
	queueCap int
	inflight []service

	bankBusyUntil map[string]mem.Cycle

	rowHitLatency      mem.Cycle
	rowMissLatency     mem.Cycle
	rowConflictLatency mem.Cycle

	// completionHandler receives served read requests. Writes complete
	// silently.
	completionHandler func(*mem.Request)

	statRowHits      *stats.Scalar
	statRowMisses    *stats.Scalar
	statRowConflicts *stats.Scalar
	statReadsServed  *stats.Scalar
	statWritesServed *stats.Scalar
	statRefusals     *stats.Scalar
}

// Name returns the name of the controller.
func (c *Comp) Name() string {
	return c.name
}

// SetCompletionHandler sets the function invoked when a read completes. The
// hierarchy owner points it at the last-level cache's Callback plus the
// request's own continuation.
func (c *Comp) SetCompletionHandler(f func(*mem.Request)) {
	c.completionHandler = f
}

// Clock returns the controller's current cycle.
func (c *Comp) Clock() mem.Cycle {
	return c.clk
}

// Spec returns the DDR3 spec.
func (c *Comp) Spec() dram.Spec {
	return c.spec
}

// RowTable returns the controller's row table.
func (c *Comp) RowTable() *dram.RowTable {
	return c.rowTable
}

// PendingRequests returns the requests awaiting scheduling.
func (c *Comp) PendingRequests() []*mem.Request {
	return c.queue
}

// SendRequest accepts one request into the pending queue. It is the bridge
// the cache system's wait list drains into; false means the queue is full and
// the system must retry next cycle.
func (c *Comp) SendRequest(req *mem.Request) bool {
	if len(c.queue) >= c.queueCap {
		c.statRefusals.Inc()
		return false
	}

	req.Arrive = c.clk
	req.AddrVec = c.mapper.Map(req.Addr)
	c.queue = append(c.queue, req)

	return true
}

// IsReady reports whether the request's bank can accept a command this cycle.
func (c *Comp) IsReady(req *mem.Request) bool {
	return c.bankIdle(c.bankKey(req.AddrVec))
}

// IsCmdReady reports whether cmd could be issued to the rowgroup this cycle.
func (c *Comp) IsCmdReady(cmd dram.Command, rowgroup []int) bool {
	scope := c.spec.Scope(cmd)
	return c.bankIdle(groupKey(rowgroup[:scope+1]))
}

// IsRowHit reports whether the request targets its bank's open row.
func (c *Comp) IsRowHit(req *mem.Request) bool {
	return c.rowTable.GetOpenRow(req.AddrVec) == req.AddrVec[c.spec.RowLevel()]
}

// IsRowOpen reports whether any row is open in the request's bank.
func (c *Comp) IsRowOpen(req *mem.Request) bool {
	return c.rowTable.GetOpenRow(req.AddrVec) != dram.NoOpenRow
}

// Tick advances the controller one cycle: finished services complete, then
// the scheduler picks the next request to issue, then the row policy may
// close an idle row.
func (c *Comp) Tick() {
	c.clk++

	c.complete()
	c.issue()
	c.precharge()
}

func (c *Comp) complete() {
	remaining := c.inflight[:0]
	for _, s := range c.inflight {
		if c.clk < s.doneAt {
			remaining = append(remaining, s)
			continue
		}

		if s.req.Type == mem.ReadReq {
			c.statReadsServed.Inc()
			if c.completionHandler != nil {
				c.completionHandler(s.req)
			}
		} else {
			c.statWritesServed.Inc()
		}

		c.InvokeHook(hooking.HookCtx{
			Domain: c, Pos: HookPosComplete, Item: s.req})
	}
	c.inflight = remaining
}

func (c *Comp) issue() {
	head := c.scheduler.GetHead(c.queue)
	if head < 0 {
		return
	}

	req := c.queue[head]
	if !c.IsReady(req) {
		return
	}

	latency := c.serveRow(req)

	key := c.bankKey(req.AddrVec)
	c.bankBusyUntil[key] = c.clk + latency

	c.queue = append(c.queue[:head], c.queue[head+1:]...)
	c.inflight = append(c.inflight, service{req: req, doneAt: c.clk + latency})

	c.InvokeHook(hooking.HookCtx{Domain: c, Pos: HookPosIssue, Item: req})
}

// serveRow applies the command sequence the request needs to the row table
// and returns the service latency.
func (c *Comp) serveRow(req *mem.Request) mem.Cycle {
	open := c.rowTable.GetOpenRow(req.AddrVec)
	row := req.AddrVec[c.spec.RowLevel()]

	var latency mem.Cycle
	switch {
	case open == row:
		c.statRowHits.Inc()
		latency = c.rowHitLatency

	case open == dram.NoOpenRow:
		c.statRowMisses.Inc()
		latency = c.rowMissLatency
		c.rowTable.Update(ddr3.CmdACT, req.AddrVec, c.clk)

	default:
		c.statRowConflicts.Inc()
		latency = c.rowConflictLatency
		c.rowTable.Update(ddr3.CmdPRE, req.AddrVec, c.clk)
		c.rowTable.Update(ddr3.CmdACT, req.AddrVec, c.clk)
	}

	access := ddr3.CmdRD
	if req.Type == mem.WriteReq {
		access = ddr3.CmdWR
	}
	c.rowTable.Update(access, req.AddrVec, c.clk)

	return latency
}

func (c *Comp) precharge() {
	victim := c.rowPolicy.GetVictim(ddr3.CmdPRE)
	if victim == nil {
		return
	}

	addrVec := make([]int, c.spec.NumLevels())
	copy(addrVec, victim)
	c.rowTable.Update(ddr3.CmdPRE, addrVec, c.clk)

	c.InvokeHook(hooking.HookCtx{
		Domain: c, Pos: HookPosPrecharge, Item: victim})
}

func (c *Comp) bankIdle(key string) bool {
	return c.bankBusyUntil[key] <= c.clk
}

func (c *Comp) bankKey(addrVec []int) string {
	scope := c.spec.Scope(c.spec.PrechargeCommand())
	return groupKey(addrVec[:scope+1])
}

func groupKey(group []int) string {
	return fmt.Sprint(group)
}
