package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/zoobzio/poolz"
)

var (
	demoWorkers int
	demoRoots   int
	demoLimit   uint64
	demoFanout  int

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run the expanding-workload demonstration",
		Long: `Run a self-expanding workload through the pool, twice.

Each phase seeds a handful of root tasks onto the host worker's queue.
Every task sleeps up to 200 microseconds of simulated work, then, as
long as the pool has seen fewer submissions than the limit, spawns more
tasks onto its own worker. Idle workers steal, so the workload spreads
from a single seeded queue across the whole pool.

Between phases the accounting counters are reset, showing how a caller
runs independent phases against one pool.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDemo()
		},
	}
)

func init() {
	demoCmd.Flags().IntVar(&demoWorkers, "workers", 12, "Child workers beyond the host")
	demoCmd.Flags().IntVar(&demoRoots, "roots", 10, "Root tasks seeded per phase")
	demoCmd.Flags().Uint64Var(&demoLimit, "limit", 10000, "Submission count at which tasks stop spawning")
	demoCmd.Flags().IntVar(&demoFanout, "fanout", 5, "Children spawned per task below the limit")
}

func runDemo() error {
	pool := poolz.New("demo", demoWorkers)

	if err := pool.OnWorkerStop(func(_ context.Context, e poolz.WorkerEvent) error {
		fmt.Printf("  worker %2d: %6d tasks, %5d steals\n", e.Worker, e.Tasks, e.Steals)
		return nil
	}); err != nil {
		return err
	}

	var grow poolz.TaskFunc
	grow = func(w *poolz.Worker, _ any) int {
		// Simulated work.
		time.Sleep(time.Duration(rand.Intn(201)) * time.Microsecond) //nolint:gosec // demo jitter

		if w.Pool().Submitted() < demoLimit {
			children := make([]poolz.Task, demoFanout)
			for i := range children {
				children[i] = poolz.Task{Do: grow}
			}
			w.SubmitBatch(children...)
		}
		return 0
	}

	for phase := 1; phase <= 2; phase++ {
		bar := progressbar.NewOptions64(int64(demoLimit),
			progressbar.OptionSetDescription(fmt.Sprintf("phase %d", phase)),
			progressbar.OptionShowCount(),
		)

		stop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					// The workload grows itself, so the target moves
					// until the limit is reached.
					bar.ChangeMax64(int64(pool.Submitted()))
					_ = bar.Set64(int64(pool.Completed())) //nolint:errcheck
				case <-stop:
					return
				}
			}
		}()

		roots := make([]poolz.Task, demoRoots)
		for i := range roots {
			roots[i] = poolz.Task{Do: grow}
		}
		pool.SubmitBatch(0, roots...)
		pool.Wait()

		close(stop)
		bar.ChangeMax64(int64(pool.Submitted()))
		_ = bar.Set64(int64(pool.Completed())) //nolint:errcheck
		_ = bar.Finish()                       //nolint:errcheck
		fmt.Printf("\nphase %d: %d tasks submitted, %d completed\n",
			phase, pool.Submitted(), pool.Completed())

		if phase == 1 {
			pool.Reset()
		}
	}

	fmt.Printf("\nsteals: %.0f, parks: %.0f\n",
		pool.Metrics().Counter(poolz.PoolStealsTotal).Value(),
		pool.Metrics().Counter(poolz.PoolParksTotal).Value())

	fmt.Println("per-worker totals:")
	if err := pool.Close(); err != nil {
		return err
	}
	// Stop hooks are asynchronous; let them land before exiting.
	time.Sleep(100 * time.Millisecond)
	return nil
}
