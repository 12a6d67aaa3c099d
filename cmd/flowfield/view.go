//go:build ebiten

package main

import (
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"flowfield/internal/app"
	"flowfield/internal/observability"
	"flowfield/internal/terrain"
)

func newViewCmd(s *session) *cobra.Command {
	var (
		scale int
		start bool
	)
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open an interactive window onto the field",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			simCfg := s.cfg.SimConfig()
			d, err := s.openDriver(ctx, simCfg)
			if err != nil {
				return err
			}
			defer d.Close()
			if start {
				if err := d.Start(ctx); err != nil {
					return err
				}
			}

			game := app.New(ctx, d, scale, terrain.Fallback(simCfg.Size), observability.GetLogger())
			defer game.Close()

			ebiten.SetWindowTitle(game.Title())
			ebiten.SetTPS(60)
			w, h := game.Layout(0, 0)
			ebiten.SetWindowSize(w, h)

			if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&scale, "scale", 16, "screen pixels per cell")
	cmd.Flags().BoolVar(&start, "start", false, "start the run immediately")
	cmd.Flags().Int("size", 0, "grid side length")
	cmd.Flags().String("variant", "", "relaxed or no-relaxation")
	cmd.Flags().String("terrain", "", "CSV terrain file")
	bindFlag(cmd, "grid.size", "size")
	bindFlag(cmd, "sim.variant", "variant")
	bindFlag(cmd, "terrain.file", "terrain")
	return cmd
}
