package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"flowfield/internal/config"
	"flowfield/internal/kernel"
	"flowfield/internal/observability"
	"flowfield/internal/sim"
	"flowfield/internal/terrain"
)

// scenario is one point of the sweep grid.
type scenario struct {
	Size    int
	Variant kernel.Variant
	Terrain string
}

func (s scenario) String() string {
	return fmt.Sprintf("%s/%s/%d", s.Terrain, s.Variant, s.Size)
}

type scenarioResult struct {
	scenario
	Run runResult
}

func newSweepCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Measure iterations to convergence across sizes, variants and terrains",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			results, err := runSweep(ctx, s.cfg, observability.GetLogger())
			if err != nil {
				return err
			}
			printSweep(cmd.OutOrStdout(), results)
			if path := s.cfg.Sweep.Output; path != "" {
				return writeSweepFile(path, results)
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 0, "scenarios run in parallel")
	cmd.Flags().StringP("out", "o", "", "write results as CSV to this file")
	bindFlag(cmd, "sweep.concurrency", "concurrency")
	bindFlag(cmd, "sweep.output", "out")
	return cmd
}

func scenarios(cfg config.SweepConfig) []scenario {
	var out []scenario
	for _, name := range cfg.Terrains {
		for _, vName := range cfg.Variants {
			v, err := kernel.ParseVariant(vName)
			if err != nil {
				continue
			}
			for _, n := range cfg.Sizes {
				out = append(out, scenario{Size: n, Variant: v, Terrain: name})
			}
		}
	}
	return out
}

// runSweep runs every scenario unpaced to the end and returns the results
// ordered by terrain, variant and size.
func runSweep(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]scenarioResult, error) {
	jobs := scenarios(cfg.Sweep)
	logger.Info("Sweeping scenarios",
		zap.Int("count", len(jobs)),
		zap.Int("concurrency", cfg.Sweep.Concurrency))

	var (
		mu      sync.Mutex
		results = make([]scenarioResult, 0, len(jobs))
	)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Sweep.Concurrency > 0 {
		g.SetLimit(cfg.Sweep.Concurrency)
	}
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			res, err := runScenario(gctx, cfg, job, logger)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", job, err)
			}
			logger.Debug("Scenario finished", zap.Stringer("scenario", job), zap.Int("iteration", res.Iteration))
			mu.Lock()
			results = append(results, scenarioResult{scenario: job, Run: res})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Terrain != b.Terrain {
			return a.Terrain < b.Terrain
		}
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Size < b.Size
	})
	return results, nil
}

func runScenario(ctx context.Context, cfg *config.Config, job scenario, logger *zap.Logger) (runResult, error) {
	simCfg := cfg.SimConfig()
	simCfg.Size = job.Size
	simCfg.Variant = job.Variant
	simCfg.Pacing = 0
	simCfg.Settle = 0

	opts := cfg.ComputeOptions()
	opts.N = job.Size
	d, err := sim.Open(ctx, opts, simCfg, logger.With(zap.Stringer("scenario", job)))
	if err != nil {
		return runResult{}, err
	}
	defer d.Close()

	if job.Terrain == "maze" {
		if err := d.LoadTerrain(ctx, terrain.Fallback(job.Size)); err != nil {
			return runResult{}, err
		}
	}
	return runToEnd(ctx, d)
}

func printSweep(w io.Writer, results []scenarioResult) {
	fmt.Fprintf(w, "%-6s %-14s %5s %10s %10s %12s %10s\n", "TERRAIN", "VARIANT", "SIZE", "ITERATION", "CONVERGED", "MAX_ESTIMATE", "ELAPSED")
	for _, r := range results {
		fmt.Fprintf(w, "%-6s %-14s %5d %10d %10t %12.2f %10s\n",
			r.Terrain, r.Variant, r.Size, r.Run.Iteration, r.Run.Converged, r.Run.MaxEstimate, r.Run.Elapsed.Round(time.Millisecond))
	}
}

func writeSweepFile(path string, results []scenarioResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := writeSweepCSV(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSweepCSV(w io.Writer, results []scenarioResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"terrain", "variant", "size", "iteration", "converged", "state", "max_estimate", "elapsed_ms"}); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.Terrain,
			r.Variant.String(),
			strconv.Itoa(r.Size),
			strconv.Itoa(r.Run.Iteration),
			strconv.FormatBool(r.Run.Converged),
			r.Run.State.String(),
			strconv.FormatFloat(r.Run.MaxEstimate, 'f', 4, 64),
			strconv.FormatInt(r.Run.Elapsed.Milliseconds(), 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
