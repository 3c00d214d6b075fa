package main

import (
	"fmt"

	"randpic/internal/catalog"
	"randpic/internal/gallery"

	"github.com/spf13/cobra"
)

func newManifestCmd(opts *globalOptions) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Rebuild manifest.json for every orientation of a tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.openCatalog(cmd)
			if err != nil {
				return err
			}
			return printRebuild(cmd, c, tag)
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "gallery tag to rebuild (required)")
	_ = cmd.MarkFlagRequired("tag")

	return cmd
}

func printRebuild(cmd *cobra.Command, c *catalog.Catalog, tag string) error {
	counts, err := c.RebuildManifests(cmd.Context(), tag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, o := range gallery.Orientations {
		n, ok := counts[o]
		if !ok {
			fmt.Fprintf(out, "%-10s  (no manifest)\n", o)
			continue
		}
		fmt.Fprintf(out, "%-10s  %d images\n", o, n)
	}
	return nil
}
