package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/memhier/mem"
)

var _ = Describe("System", func() {
	var (
		system   *System
		sent     []*mem.Request
		refusals int
	)

	BeforeEach(func() {
		sent = nil
		refusals = 0
		system = NewSystem(func(req *mem.Request) bool {
			if refusals > 0 {
				refusals--
				return false
			}
			sent = append(sent, req)
			return true
		})
	})

	It("should advance the clock", func() {
		Expect(system.Clock()).To(Equal(mem.Cycle(0)))
		system.Tick()
		Expect(system.Clock()).To(Equal(mem.Cycle(1)))
	})

	It("should hold a waiting request until its ready time", func() {
		req := mem.NewRequest(0x40, mem.ReadReq)
		system.scheduleMemory(3, req)

		system.Tick()
		system.Tick()
		Expect(sent).To(BeEmpty())

		system.Tick()
		Expect(sent).To(ConsistOf(req))
		Expect(system.PendingMemory()).To(BeEmpty())
	})

	It("should keep a refused request and retry it next tick", func() {
		refusals = 1
		req := mem.NewRequest(0x40, mem.ReadReq)
		system.scheduleMemory(1, req)

		system.Tick()
		Expect(sent).To(BeEmpty())
		Expect(system.PendingMemory()).To(HaveLen(1))

		system.Tick()
		Expect(sent).To(ConsistOf(req))
	})

	It("should keep scanning past a refused request", func() {
		refusals = 1
		req1 := mem.NewRequest(0x40, mem.ReadReq)
		req2 := mem.NewRequest(0x80, mem.ReadReq)
		system.scheduleMemory(1, req1)
		system.scheduleMemory(1, req2)

		system.Tick()

		Expect(sent).To(ConsistOf(req2))
		Expect(system.PendingMemory()).To(HaveLen(1))
	})

	It("should complete ready hits through their callback", func() {
		completed := []*mem.Request{}
		req := mem.NewRequest(0x40, mem.ReadReq)
		req.Callback = func(r *mem.Request) {
			completed = append(completed, r)
		}

		system.scheduleHit(2, req)

		system.Tick()
		Expect(completed).To(BeEmpty())

		system.Tick()
		Expect(completed).To(ConsistOf(req))
		Expect(system.PendingHits()).To(BeEmpty())
	})

	It("should drain memory before hits within one tick", func() {
		var order []string

		hit := mem.NewRequest(0x40, mem.ReadReq)
		hit.Callback = func(*mem.Request) {
			order = append(order, "hit")
		}

		system = NewSystem(func(*mem.Request) bool {
			order = append(order, "memory")
			return true
		})
		system.scheduleHit(1, hit)
		system.scheduleMemory(1, mem.NewRequest(0x80, mem.ReadReq))

		system.Tick()

		Expect(order).To(Equal([]string{"memory", "hit"}))
	})

	It("should panic without a memory bridge", func() {
		system = NewSystem(nil)
		system.scheduleMemory(1, mem.NewRequest(0x40, mem.ReadReq))

		Expect(func() { system.Tick() }).To(Panic())
	})
})
