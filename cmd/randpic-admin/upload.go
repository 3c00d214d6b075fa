package main

import (
	"fmt"

	"randpic/internal/gallery"

	"github.com/spf13/cobra"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	var (
		tag         string
		orientation string
		rebuild     bool
	)

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload images into a tag's orientation directories",
		Long: `Upload images to <base_prefix>/<tag>/<orientation>/<file name>.

With --orientation auto (the default) each image is decoded far enough to
read its dimensions: wider than tall is horizontal, taller than wide is
vertical, otherwise square.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := parseUploadOrientation(orientation)
			if err != nil {
				return err
			}

			c, _, err := opts.openCatalog(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if e, ok := c.Engine().(bucketEnsurer); ok {
				if err := e.EnsureBucket(ctx); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, file := range args {
				res, err := c.UploadFile(ctx, tag, o, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s -> %s (%s, %d bytes)\n", file, res.Key, res.Orientation, res.Size)
			}

			if !rebuild {
				return nil
			}
			return printRebuild(cmd, c, tag)
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "gallery tag to upload into (required)")
	cmd.Flags().StringVar(&orientation, "orientation", "auto", "auto, horizontal, vertical or square")
	cmd.Flags().BoolVar(&rebuild, "rebuild", true, "rebuild manifests after uploading")
	_ = cmd.MarkFlagRequired("tag")

	return cmd
}

// parseUploadOrientation maps "auto" to gallery.Any and otherwise accepts
// only the stored orientations.
func parseUploadOrientation(s string) (gallery.Orientation, error) {
	if s == "auto" {
		return gallery.Any, nil
	}
	if o := gallery.Orientation(s); o.Stored() {
		return o, nil
	}
	return "", fmt.Errorf("invalid --orientation %q: use auto, horizontal, vertical or square", s)
}
