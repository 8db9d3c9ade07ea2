package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/stats"
)

var _ = Describe("Cache hierarchy", func() {
	var (
		registry   *stats.Registry
		system     *System
		l1, l2, l3 *Comp
	)

	makeLevel := func(level Level, size, mshrNum int, name string) *Comp {
		return MakeBuilder().
			WithSystem(system).
			WithStatsRegistry(registry).
			WithLevel(level).
			WithSize(size).
			WithAssoc(8).
			WithBlockSize(64).
			WithMSHREntryNum(mshrNum).
			Build(name)
	}

	contains := func(c *Comp, addr uint64) bool {
		_, found := c.directory.Lookup(addr)
		return found
	}

	// completeFill plays the memory controller completing a fill.
	completeFill := func(req *mem.Request) {
		l3.Callback(req)
	}

	BeforeEach(func() {
		registry = stats.NewRegistry()
		system = NewSystem(func(*mem.Request) bool { return true })

		// A small L1 on top of progressively larger levels, so that L1
		// conflicts do not collide below.
		l1 = makeLevel(L1, 2048, 16, "L1")
		l2 = makeLevel(L2, 32768, 16, "L2")
		l3 = makeLevel(L3, 262144, 16, "L3")
		l1.ConcatLower(l2)
		l2.ConcatLower(l3)
	})

	It("should allocate a locked line at every level on a cold read", func() {
		req := mem.NewRequest(0x0, mem.ReadReq)

		Expect(l1.Send(req)).To(BeTrue())

		for _, c := range []*Comp{l1, l2, l3} {
			block, found := c.directory.Lookup(0x0)
			Expect(found).To(BeTrue())
			Expect(block.IsLocked).To(BeTrue())
			_, found = c.mshr.Lookup(0x0)
			Expect(found).To(BeTrue())
		}

		// Only the last level talks to memory.
		Expect(system.PendingMemory()).To(HaveLen(1))
		Expect(system.PendingMemory()[0].Ready).To(Equal(mem.Cycle(40)))
	})

	It("should unlock the whole chain when the fill completes", func() {
		req := mem.NewRequest(0x0, mem.ReadReq)
		l1.Send(req)

		completeFill(req)

		for _, c := range []*Comp{l1, l2, l3} {
			block, found := c.directory.Lookup(0x0)
			Expect(found).To(BeTrue())
			Expect(block.IsLocked).To(BeFalse())
			Expect(c.mshr.Entries).To(BeEmpty())
		}
	})

	It("should complete an L1 hit with the L1 latency", func() {
		req := mem.NewRequest(0x0, mem.ReadReq)
		l1.Send(req)
		completeFill(req)

		again := mem.NewRequest(0x0, mem.ReadReq)
		Expect(l1.Send(again)).To(BeTrue())

		Expect(system.PendingHits()).To(HaveLen(1))
		Expect(system.PendingHits()[0].Ready).
			To(Equal(system.Clock() + mem.Cycle(4)))
	})

	It("should keep an evicted clean block resident below", func() {
		// L1 has 4 sets; stride 256 maps everything to L1 set 0.
		for i := 0; i < 8; i++ {
			req := mem.NewRequest(uint64(i*256), mem.ReadReq)
			Expect(l1.Send(req)).To(BeTrue())
			completeFill(req)
		}

		victim := mem.NewRequest(uint64(8*256), mem.ReadReq)
		Expect(l1.Send(victim)).To(BeTrue())

		Expect(contains(l1, 0x0)).To(BeFalse())
		Expect(contains(l2, 0x0)).To(BeTrue())
		Expect(contains(l3, 0x0)).To(BeTrue())

		// No write-back: the block was clean.
		Expect(system.PendingMemory()).To(HaveLen(9))
	})

	It("should push dirtiness down when a dirty block is evicted", func() {
		write := mem.NewRequest(0x0, mem.WriteReq)
		l1.Send(write)
		completeFill(write)

		dirtyAtL1, _ := l1.directory.Lookup(0x0)
		Expect(dirtyAtL1.IsDirty).To(BeTrue())
		cleanAtL2, _ := l2.directory.Lookup(0x0)
		Expect(cleanAtL2.IsDirty).To(BeFalse())

		for i := 1; i <= 8; i++ {
			req := mem.NewRequest(uint64(i*256), mem.ReadReq)
			l1.Send(req)
			completeFill(req)
		}

		Expect(contains(l1, 0x0)).To(BeFalse())
		block, found := l2.directory.Lookup(0x0)
		Expect(found).To(BeTrue())
		Expect(block.IsDirty).To(BeTrue())
	})

	It("should preserve inclusion while the working set churns", func() {
		addrs := []uint64{0x0, 0x100, 0x200, 0x300, 0x400, 0x500,
			0x600, 0x700, 0x800, 0x900, 0xa00}
		for _, addr := range addrs {
			req := mem.NewRequest(addr, mem.ReadReq)
			l1.Send(req)
			completeFill(req)
		}

		for si := range l1.directory.Sets {
			for _, b := range l1.directory.Sets[si].Blocks {
				if !b.IsValid {
					continue
				}
				Expect(contains(l2, b.Addr)).To(BeTrue())
				Expect(contains(l3, b.Addr)).To(BeTrue())
			}
		}
	})

	Describe("invalidation walk", func() {
		fill := func(addr uint64) {
			req := mem.NewRequest(addr, mem.ReadReq)
			l1.Send(req)
			completeFill(req)
		}

		It("should report the walk latency for a clean chain", func() {
			fill(0x0)

			delay, dirty := l3.Invalidate(0x0)

			// 28 at L3, 8 at L2, 4 at L1:
			// L2 returns max(8, 8+4) = 12; L3 max(28, 28+12) = 40.
			Expect(delay).To(Equal(mem.Cycle(40)))
			Expect(dirty).To(BeFalse())

			for _, c := range []*Comp{l1, l2, l3} {
				Expect(contains(c, 0x0)).To(BeFalse())
			}
		})

		It("should double the child delay for a dirty copy", func() {
			write := mem.NewRequest(0x0, mem.WriteReq)
			l1.Send(write)
			completeFill(write)

			delay, dirty := l3.Invalidate(0x0)

			// L1 returns (4, dirty); L2 max(8, 8+4*2) = 16;
			// L3 max(28, 28+16*2) = 60.
			Expect(delay).To(Equal(mem.Cycle(60)))
			Expect(dirty).To(BeTrue())
		})

		It("should charge only the local latency when absent", func() {
			delay, dirty := l2.Invalidate(0x0)

			Expect(delay).To(Equal(mem.Cycle(8)))
			Expect(dirty).To(BeFalse())
		})

		It("should panic on a locked line", func() {
			req := mem.NewRequest(0x0, mem.ReadReq)
			l1.Send(req)

			Expect(func() { l3.Invalidate(0x0) }).To(Panic())
		})
	})

	Describe("lock visibility across levels", func() {
		It("should see locks held above", func() {
			req := mem.NewRequest(0x0, mem.ReadReq)
			l1.Send(req)

			Expect(l2.CheckUnlock(0x0)).To(BeFalse())
			Expect(l3.CheckUnlock(0x0)).To(BeFalse())

			completeFill(req)

			Expect(l2.CheckUnlock(0x0)).To(BeTrue())
			Expect(l3.CheckUnlock(0x0)).To(BeTrue())
		})

		It("should treat an absent block as unlocked", func() {
			Expect(l2.CheckUnlock(0xdead00)).To(BeTrue())
		})
	})

	Describe("retrying refused requests", func() {
		BeforeEach(func() {
			registry = stats.NewRegistry()
			system = NewSystem(func(*mem.Request) bool { return true })

			l1 = makeLevel(L1, 2048, 16, "L1r")
			l2 = makeLevel(L2, 32768, 1, "L2r")
			l3 = makeLevel(L3, 262144, 16, "L3r")
			l1.ConcatLower(l2)
			l2.ConcatLower(l3)
		})

		It("should park a refused request and drain it on tick", func() {
			first := mem.NewRequest(0x0, mem.ReadReq)
			Expect(l1.Send(first)).To(BeTrue())

			// L2's single MSHR entry is taken; the next miss is
			// absorbed by L1 but refused below.
			second := mem.NewRequest(0x10000, mem.ReadReq)
			Expect(l1.Send(second)).To(BeTrue())
			Expect(l1.retryList).To(HaveLen(1))

			l1.Tick()
			Expect(l1.retryList).To(HaveLen(1))

			completeFill(first)

			l1.Tick()
			Expect(l1.retryList).To(BeEmpty())
			Expect(system.PendingMemory()).To(HaveLen(2))
		})
	})
})
