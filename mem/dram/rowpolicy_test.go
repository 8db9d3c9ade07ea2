package dram_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/dram"
	"github.com/tracelab/memhier/mem/dram/ddr3"
)

var _ = Describe("RowPolicy", func() {
	var (
		mockCtrl *gomock.Controller
		ctrl     *MockController
		table    *dram.RowTable

		clk       mem.Cycle
		busyBanks map[int]bool
	)

	vec := func(bank, row int) []int {
		return []int{0, 0, bank, row, 0}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ctrl = NewMockController(mockCtrl)
		table = dram.NewRowTable(ddr3.NewSpec())

		clk = 0
		busyBanks = map[int]bool{}

		ctrl.EXPECT().Clock().
			DoAndReturn(func() mem.Cycle { return clk }).
			AnyTimes()
		ctrl.EXPECT().IsCmdReady(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ dram.Command, rowgroup []int) bool {
				return !busyBanks[rowgroup[2]]
			}).
			AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should close nothing when no row is open", func() {
		policy := dram.NewRowPolicy(ctrl, table, dram.Closed)
		Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())
	})

	Describe("Closed and ClosedAP", func() {
		It("should return the first rowgroup in table order", func() {
			table.Update(ddr3.CmdACT, vec(5, 1), 0)
			table.Update(ddr3.CmdACT, vec(2, 1), 0)

			for _, kind := range []dram.RowPolicyKind{
				dram.Closed, dram.ClosedAP,
			} {
				policy := dram.NewRowPolicy(ctrl, table, kind)
				Expect(policy.GetVictim(ddr3.CmdPRE)).
					To(Equal([]int{0, 0, 2}))
			}
		})

		It("should skip rowgroups the command is not ready for", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)
			table.Update(ddr3.CmdACT, vec(5, 1), 0)
			busyBanks[2] = true

			policy := dram.NewRowPolicy(ctrl, table, dram.Closed)
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(Equal([]int{0, 0, 5}))
		})

		It("should return nothing when no rowgroup is ready", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)
			busyBanks[2] = true

			policy := dram.NewRowPolicy(ctrl, table, dram.Closed)
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())
		})
	})

	Describe("Opened", func() {
		It("should never force a precharge", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)

			policy := dram.NewRowPolicy(ctrl, table, dram.Opened)
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())
		})
	})

	Describe("Timeout", func() {
		It("should wait out the idle threshold", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)
			policy := dram.NewRowPolicy(ctrl, table, dram.Timeout)

			clk = 49
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())

			clk = 50
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(Equal([]int{0, 0, 2}))
		})

		It("should treat an access as renewed activity", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)
			table.Update(ddr3.CmdRD, vec(2, 1), 30)

			policy := dram.NewRowPolicy(ctrl, table, dram.Timeout)

			clk = 60
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())

			clk = 80
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(Equal([]int{0, 0, 2}))
		})

		It("should honor a custom threshold", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)

			policy := dram.NewRowPolicy(ctrl, table, dram.Timeout).
				WithTimeout(10)

			clk = 10
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(Equal([]int{0, 0, 2}))
		})

		It("should only return ready rowgroups", func() {
			table.Update(ddr3.CmdACT, vec(2, 1), 0)
			busyBanks[2] = true

			policy := dram.NewRowPolicy(ctrl, table, dram.Timeout)

			clk = 100
			Expect(policy.GetVictim(ddr3.CmdPRE)).To(BeNil())
		})
	})

	It("should resolve policy names", func() {
		kind, ok := dram.RowPolicyKindByName("Timeout")
		Expect(ok).To(BeTrue())
		Expect(kind).To(Equal(dram.Timeout))

		_, ok = dram.RowPolicyKindByName("banana")
		Expect(ok).To(BeFalse())
	})
})
