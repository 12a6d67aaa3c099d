//go:build !ebiten

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newViewCmd(*session) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Open an interactive window onto the field (requires -tags ebiten)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("the view command requires building with -tags ebiten")
		},
	}
}
