package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowfield/internal/terrain"
)

func newMazeCmd(s *session) *cobra.Command {
	var (
		size int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "maze",
		Short: "Export the built-in fallback maze as CSV terrain",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := size
			if n <= 0 {
				n = s.cfg.Grid.Size
			}
			g := terrain.Fallback(n)
			if out == "" {
				return terrain.Encode(cmd.OutOrStdout(), g)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := terrain.Encode(f, g); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "grid side length (defaults to grid.size)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
