package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/pkg/rig"
)

func newRigsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rigs",
		Short: "List the embedded rig templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := rig.ListEmbedded()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
