package dram

import (
	"slices"

	"github.com/tracelab/memhier/mem"
)

// SchedulerKind selects the request scheduling policy.
type SchedulerKind int

// The scheduling policies a controller can run.
const (
	// FCFS schedules requests chronologically.
	FCFS SchedulerKind = iota

	// FCFSBank prioritizes requests whose bank is idle, then falls back
	// to chronological order.
	FCFSBank

	// FRFCFS prioritizes requests that are both to an idle bank and to
	// the open row, then behaves like FCFSBank.
	FRFCFS

	// BLISS is an extension slot for blacklisting-based scheduling. Its
	// baseline behavior is FRFCFS.
	BLISS

	// Custom is an extension slot for experiments. Its baseline behavior
	// is FRFCFS.
	Custom

	numSchedulerKinds
)

var schedulerKindByName = map[string]SchedulerKind{
	"FCFS":     FCFS,
	"FCFSBank": FCFSBank,
	"FRFCFS":   FRFCFS,
	"BLISS":    BLISS,
	"Custom":   Custom,
}

// SchedulerKindByName resolves a configuration string to a scheduler kind.
func SchedulerKindByName(name string) (SchedulerKind, bool) {
	kind, ok := schedulerKindByName[name]
	return kind, ok
}

// Scheduler chooses which pending request a controller issues next.
type Scheduler struct {
	ctrl    Controller
	kind    SchedulerKind
	compare [numSchedulerKinds]func(a, b *mem.Request) *mem.Request
}

// NewScheduler creates a scheduler of the given kind. An unknown kind
// defaults to FRFCFS.
func NewScheduler(ctrl Controller, kind SchedulerKind) *Scheduler {
	if kind < 0 || kind >= numSchedulerKinds {
		kind = FRFCFS
	}

	s := &Scheduler{
		ctrl: ctrl,
		kind: kind,
	}

	s.compare = [numSchedulerKinds]func(a, b *mem.Request) *mem.Request{
		FCFS:     s.compareFCFS,
		FCFSBank: s.compareFCFSBank,
		FRFCFS:   s.compareFRFCFS,
		BLISS:    s.compareFRFCFS,
		Custom:   s.compareFRFCFS,
	}

	return s
}

// GetHead returns the index into the pending queue of the request to issue
// next, or -1 when nothing should be issued this cycle. It is a pure
// function of the queue and the controller-observable state.
func (s *Scheduler) GetHead(q []*mem.Request) int {
	if len(q) == 0 {
		return -1
	}

	head := 0
	for i := 1; i < len(q); i++ {
		if s.compare[s.kind](q[head], q[i]) == q[i] {
			head = i
		}
	}

	if s.kind == FCFS || s.kind == FCFSBank {
		return head
	}

	// FRFCFS family: if the best candidate is ready and a row hit, issue
	// it. Otherwise pick a fallback that will not precharge a row some
	// other queued request still hits.
	if s.ctrl.IsReady(q[head]) && s.ctrl.IsRowHit(q[head]) {
		return head
	}

	return s.fallbackAvoidingRowHits(q)
}

func (s *Scheduler) fallbackAvoidingRowHits(q []*mem.Request) int {
	scope := s.ctrl.Spec().Scope(s.ctrl.Spec().PrechargeCommand())

	var hitGroups [][]int
	for _, req := range q {
		if s.ctrl.IsRowHit(req) {
			hitGroups = append(hitGroups, req.Rowgroup(scope))
		}
	}

	// A -1 result suppresses issuing any command this cycle; the bank
	// stays idle rather than destroying a queued row hit.
	head := -1
	for i, req := range q {
		if s.violatesRowHit(req, scope, hitGroups) {
			continue
		}

		if head == -1 || s.compareFCFSBank(q[head], req) == req {
			head = i
		}
	}

	return head
}

// violatesRowHit reports whether issuing req would start with a precharge of
// a row another queued request still hits.
func (s *Scheduler) violatesRowHit(
	req *mem.Request,
	scope int,
	hitGroups [][]int,
) bool {
	if s.ctrl.IsRowHit(req) || !s.ctrl.IsRowOpen(req) {
		return false
	}

	group := req.Rowgroup(scope)
	for _, hg := range hitGroups {
		if slices.Equal(group, hg) {
			return true
		}
	}

	return false
}

// Ties always go to the first argument, which is the earlier-scanned
// element, so selection is stable.

func (s *Scheduler) compareFCFS(a, b *mem.Request) *mem.Request {
	if a.Arrive <= b.Arrive {
		return a
	}
	return b
}

func (s *Scheduler) compareFCFSBank(a, b *mem.Request) *mem.Request {
	ready1 := s.ctrl.IsReady(a)
	ready2 := s.ctrl.IsReady(b)

	if ready1 != ready2 {
		if ready1 {
			return a
		}
		return b
	}

	return s.compareFCFS(a, b)
}

func (s *Scheduler) compareFRFCFS(a, b *mem.Request) *mem.Request {
	ready1 := s.ctrl.IsReady(a) && s.ctrl.IsRowHit(a)
	ready2 := s.ctrl.IsReady(b) && s.ctrl.IsRowHit(b)

	if ready1 != ready2 {
		if ready1 {
			return a
		}
		return b
	}

	return s.compareFCFS(a, b)
}
