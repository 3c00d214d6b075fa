package main

import (
	"fmt"

	"randpic/internal/gallery"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the served tag and its image counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.openCatalog(cmd)
			if err != nil {
				return err
			}

			summary, err := c.Gallery().Summarize(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "storage:  %s\n", cfg.Storage.Driver)
			fmt.Fprintf(out, "prefix:   %s\n", cfg.BasePrefix)
			fmt.Fprintf(out, "tag:      %s\n", summary.Tag)
			for _, o := range gallery.Orientations {
				fmt.Fprintf(out, "%-10s%d\n", o, summary.Counts[o])
			}
			fmt.Fprintf(out, "total:    %d\n", summary.Total)
			return nil
		},
	}
}
