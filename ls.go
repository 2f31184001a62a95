package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driveput/driveput/internal/lister"
)

var (
	flagAll  bool
	flagLong bool
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a local directory before uploading it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().BoolVarP(&flagAll, "all", "a", false, "include hidden entries")
	cmd.Flags().BoolVarP(&flagLong, "long", "l", false, "show size and modification time")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	out := lister.List(path, lister.Options{
		ShowHidden:  flagAll,
		ShowDetails: flagLong,
	})
	fmt.Fprint(cmd.OutOrStdout(), out)

	return nil
}
