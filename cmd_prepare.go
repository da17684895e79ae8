package main

import (
	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
	"github.com/tasoc/tessphot/pkg/prepare"
	"github.com/tasoc/tessphot/pkg/tessconf"
)

func init() {
	var opts prepare.BuildOptions
	cmd := &cobra.Command{
		Use:   "prepare [flags]",
		Short: "Assemble full-frame images into per-CCD image stacks",
		Long: "Collects the calibrated full-frame images in the input folder and " +
			"assembles them into one image-stack file per sector, camera and CCD, " +
			"sorted by time. Photometry cuts its stamps out of these stacks.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return prepare.Build(cmd.Context(), tessconf.FromEnv(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Camera, "camera", 0, "Only prepare this camera (0 means all)")
	cmd.Flags().IntVar(&opts.CCD, "ccd", 0, "Only prepare this CCD (0 means all)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Rebuild stacks that already exist")

	argparser.AddCommand(cmd)
}
