package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracelab/memhier/mem"
	"github.com/tracelab/memhier/mem/cache"
	"github.com/tracelab/memhier/mem/dram"
	"github.com/tracelab/memhier/mem/dram/refctrl"
	"github.com/tracelab/memhier/monitoring"
	"github.com/tracelab/memhier/stats"
)

var runFlags struct {
	cycles    int64
	numLevels int
	blockSize int
	mshr      int

	scheduler  string
	rowPolicy  string
	rowTimeout int64

	seed      int64
	footprint uint64
	writePct  int
	locality  int

	sqlitePath  string
	monitorPort int
	openBrowser bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload through the hierarchy",
	Run: func(cmd *cobra.Command, args []string) {
		runSimulation()
	},
}

func init() {
	f := runCmd.Flags()
	f.Int64Var(&runFlags.cycles, "cycles", 100000, "cycles to simulate")
	f.IntVar(&runFlags.numLevels, "levels", 3, "number of cache levels (1-3)")
	f.IntVar(&runFlags.blockSize, "block-size", 64, "cache block size in bytes")
	f.IntVar(&runFlags.mshr, "mshr", 16, "MSHR entries per cache level")
	f.StringVar(&runFlags.scheduler, "scheduler", "FRFCFS",
		"scheduling policy: FCFS, FCFSBank, FRFCFS, BLISS, Custom")
	f.StringVar(&runFlags.rowPolicy, "row-policy", "Timeout",
		"row policy: Closed, ClosedAP, Opened, Timeout")
	f.Int64Var(&runFlags.rowTimeout, "row-timeout", 50,
		"idle cycles before the Timeout policy closes a row")
	f.Int64Var(&runFlags.seed, "seed", 1, "random seed")
	f.Uint64Var(&runFlags.footprint, "footprint", 1<<26,
		"address range touched by the workload in bytes")
	f.IntVar(&runFlags.writePct, "write-pct", 30, "percentage of writes")
	f.IntVar(&runFlags.locality, "locality", 80,
		"percentage of accesses that stay near the previous one")
	f.StringVar(&runFlags.sqlitePath, "sqlite", "",
		"also dump stats into this SQLite database")
	f.IntVar(&runFlags.monitorPort, "monitor", -1,
		"serve live stats over HTTP on this port (0 picks a free one)")
	f.BoolVar(&runFlags.openBrowser, "open", false,
		"open the monitoring endpoint in the browser")

	rootCmd.AddCommand(runCmd)
}

// levelPlan returns the geometry of each built level, top first.
func levelPlan(numLevels int) []cache.Level {
	switch numLevels {
	case 1:
		return []cache.Level{cache.L3}
	case 2:
		return []cache.Level{cache.L2, cache.L3}
	case 3:
		return []cache.Level{cache.L1, cache.L2, cache.L3}
	}

	fmt.Fprintf(os.Stderr, "invalid --levels %d, must be 1-3\n", numLevels)
	os.Exit(1)
	return nil
}

var levelSize = map[cache.Level]int{
	cache.L1: 32 * 1024,
	cache.L2: 256 * 1024,
	cache.L3: 4 * 1024 * 1024,
}

func runSimulation() {
	schedKind, ok := dram.SchedulerKindByName(runFlags.scheduler)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scheduler %q\n", runFlags.scheduler)
		os.Exit(1)
	}

	policyKind, ok := dram.RowPolicyKindByName(runFlags.rowPolicy)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown row policy %q\n", runFlags.rowPolicy)
		os.Exit(1)
	}

	registry := stats.NewRegistry()

	ctrl := refctrl.MakeBuilder().
		WithStatsRegistry(registry).
		WithSchedulerKind(schedKind).
		WithRowPolicyKind(policyKind).
		WithRowPolicyTimeout(mem.Cycle(runFlags.rowTimeout)).
		Build("DRAM")

	system := cache.NewSystem(ctrl.SendRequest)

	levels := levelPlan(runFlags.numLevels)
	comps := make([]*cache.Comp, len(levels))
	for i, level := range levels {
		comps[i] = cache.MakeBuilder().
			WithSystem(system).
			WithStatsRegistry(registry).
			WithLevel(level).
			WithSize(levelSize[level]).
			WithAssoc(8).
			WithBlockSize(runFlags.blockSize).
			WithMSHREntryNum(runFlags.mshr).
			Build(level.String())
	}
	for i := 0; i < len(comps)-1; i++ {
		comps[i].ConcatLower(comps[i+1])
	}

	top := comps[0]
	llc := comps[len(comps)-1]

	completed := int64(0)
	ctrl.SetCompletionHandler(func(req *mem.Request) {
		llc.Callback(req)
		if req.Callback != nil {
			req.Callback(req)
		}
	})

	if runFlags.monitorPort >= 0 {
		monitor := monitoring.NewMonitor().
			WithPortNumber(runFlags.monitorPort)
		monitor.RegisterStatsRegistry(registry)
		monitor.StartServer()
		if runFlags.openBrowser {
			monitor.OpenDashboard()
		}
	}

	rng := rand.New(rand.NewSource(runFlags.seed))
	gen := addressGenerator{
		rng:       rng,
		footprint: runFlags.footprint,
		blockSize: uint64(runFlags.blockSize),
		locality:  runFlags.locality,
	}

	issued := int64(0)
	var pending *mem.Request

	for cycle := int64(0); cycle < runFlags.cycles; cycle++ {
		if pending == nil {
			t := mem.ReadReq
			if rng.Intn(100) < runFlags.writePct {
				t = mem.WriteReq
			}
			pending = mem.NewRequest(gen.next(), t)
			pending.Callback = func(*mem.Request) { completed++ }
		}

		if top.Send(pending) {
			issued++
			pending = nil
		}

		system.Tick()
		top.Tick()
		ctrl.Tick()
	}

	fmt.Printf("simulated %d cycles, issued %d requests, completed %d requests\n",
		runFlags.cycles, issued, completed)
	registry.Dump(os.Stdout)

	if runFlags.sqlitePath != "" {
		writer := stats.NewSQLiteWriter(registry, runFlags.sqlitePath)
		writer.Init()
		writer.Flush()
	}
}

// addressGenerator produces a stream with tunable spatial locality: most
// accesses step through the current region block by block, the rest jump.
type addressGenerator struct {
	rng       *rand.Rand
	footprint uint64
	blockSize uint64
	locality  int

	current uint64
}

func (g *addressGenerator) next() uint64 {
	if g.rng.Intn(100) < g.locality {
		g.current += g.blockSize
	} else {
		g.current = uint64(g.rng.Int63n(int64(g.footprint)))
	}
	g.current %= g.footprint

	return g.current
}
