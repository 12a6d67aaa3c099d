package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowfield/internal/observability"
	"flowfield/internal/sim"
	"flowfield/internal/terrain"
)

// runResult summarises one headless run.
type runResult struct {
	Size        int
	Variant     string
	State       sim.State
	Iteration   int
	Converged   bool
	MaxEstimate float64
	Elapsed     time.Duration
}

func (r runResult) String() string {
	return fmt.Sprintf("size=%d variant=%s state=%s iteration=%d converged=%t max_estimate=%.2f elapsed=%s",
		r.Size, r.Variant, r.State, r.Iteration, r.Converged, r.MaxEstimate, r.Elapsed.Round(time.Millisecond))
}

func newRunCmd(s *session) *cobra.Command {
	var (
		out    string
		pacing time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the field to convergence without a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			simCfg := s.cfg.SimConfig()
			simCfg.Pacing = pacing
			d, err := s.openDriver(ctx, simCfg)
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := runToEnd(ctx, d)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)

			if out == "" {
				return nil
			}
			return writePotential(ctx, d, out)
		},
	}
	cmd.Flags().Int("size", 0, "grid side length")
	cmd.Flags().String("variant", "", "relaxed or no-relaxation")
	cmd.Flags().String("backend", "", "compute backend (cpu or opencl)")
	cmd.Flags().String("terrain", "", "CSV terrain file")
	cmd.Flags().Int("max-iterations", 0, "stop after this many steps (0 means no limit)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the final potential as CSV to this file")
	cmd.Flags().DurationVar(&pacing, "pacing", 0, "delay between steps")
	bindFlag(cmd, "grid.size", "size")
	bindFlag(cmd, "sim.variant", "variant")
	bindFlag(cmd, "compute.backend", "backend")
	bindFlag(cmd, "terrain.file", "terrain")
	bindFlag(cmd, "sim.max_iterations", "max-iterations")
	return cmd
}

// runToEnd starts d and blocks until the run converges, hits its iteration
// limit, fails or ctx is cancelled.
func runToEnd(ctx context.Context, d *sim.Driver) (runResult, error) {
	start := time.Now()
	if err := d.Start(ctx); err != nil {
		return runResult{}, err
	}
	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-stopped:
		}
	}()
	err := d.Wait()
	close(stopped)
	if err != nil {
		return runResult{}, err
	}
	return runResult{
		Size:        d.Size(),
		Variant:     d.Variant().String(),
		State:       d.State(),
		Iteration:   d.Iteration(),
		Converged:   d.Converged(),
		MaxEstimate: d.MaxEstimate(),
		Elapsed:     time.Since(start),
	}, ctx.Err()
}

func writePotential(ctx context.Context, d *sim.Driver, path string) error {
	snap, err := d.Snapshot(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := encodePotential(f, snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	observability.GetLogger().Info("Potential written", zap.String("path", path), zap.Int("iteration", snap.Iteration))
	return nil
}

func encodePotential(w io.Writer, snap sim.Snapshot) error {
	return terrain.EncodeValues(w, snap.Potential, snap.Size)
}
