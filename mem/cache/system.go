package cache

import (
	"github.com/tracelab/memhier/mem"
)

// A QueueEntry is a request waiting in one of the system's delivery queues
// until the clock reaches its ready time.
type QueueEntry struct {
	Ready mem.Cycle
	Req   *mem.Request
}

// System is the shared tick driver of one cache hierarchy. It owns the global
// clock, the queue of completed hits waiting for their latency to elapse, and
// the queue of misses waiting to enter memory.
type System struct {
	clk mem.Cycle

	hitList  []QueueEntry
	waitList []QueueEntry

	sendMemory func(*mem.Request) bool
}

// NewSystem creates a cache system. sendMemory is the bridge the last-level
// cache uses to hand requests to the memory controller; it returns false when
// the controller cannot accept the request this cycle.
func NewSystem(sendMemory func(*mem.Request) bool) *System {
	return &System{
		sendMemory: sendMemory,
	}
}

// SetSendMemory replaces the memory bridge. It must be set before the first
// request reaches the wait list.
func (s *System) SetSendMemory(f func(*mem.Request) bool) {
	s.sendMemory = f
}

// Clock returns the current cycle.
func (s *System) Clock() mem.Cycle {
	return s.clk
}

// PendingHits returns the hits waiting for completion.
func (s *System) PendingHits() []QueueEntry {
	return s.hitList
}

// PendingMemory returns the requests waiting to enter memory.
func (s *System) PendingMemory() []QueueEntry {
	return s.waitList
}

func (s *System) scheduleHit(ready mem.Cycle, req *mem.Request) {
	s.hitList = append(s.hitList, QueueEntry{Ready: ready, Req: req})
}

func (s *System) scheduleMemory(ready mem.Cycle, req *mem.Request) {
	s.waitList = append(s.waitList, QueueEntry{Ready: ready, Req: req})
}

// Tick advances the clock one cycle, sends ready waiting requests to memory,
// and completes ready hits. Memory is drained first so that hit callbacks
// observe already-dispatched memory state.
func (s *System) Tick() {
	s.clk++

	// The wait list is drained in insertion order and scanning stops at
	// the first entry that is not ready yet; a later entry waits behind it
	// even when its own ready time has passed. A refused request stays put
	// and is retried next cycle.
	i := 0
	for i < len(s.waitList) && s.clk >= s.waitList[i].Ready {
		if s.sendMemory == nil {
			panic("cache system has no memory bridge")
		}

		if s.sendMemory(s.waitList[i].Req) {
			s.waitList = append(s.waitList[:i], s.waitList[i+1:]...)
		} else {
			i++
		}
	}

	i = 0
	for i < len(s.hitList) {
		entry := s.hitList[i]
		if s.clk >= entry.Ready {
			s.hitList = append(s.hitList[:i], s.hitList[i+1:]...)
			if entry.Req.Callback != nil {
				entry.Req.Callback(entry.Req)
			}
		} else {
			i++
		}
	}
}
