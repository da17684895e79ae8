package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
	"github.com/tasoc/tessphot/pkg/starcat"
	"github.com/tasoc/tessphot/pkg/tessconf"
)

func init() {
	var opts starcat.BuildOptions
	var argTICDB string
	cmd := &cobra.Command{
		Use:   "catalog [flags] SECTOR",
		Short: "Build the star catalogs for one observing sector",
		Long: "Queries the TESS Input Catalog mirror for every star on (or near) " +
			"each camera/CCD of the given sector, projects the positions to the " +
			"sector reference time, and writes one catalog file per CCD into the " +
			"input folder.",
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sector, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad sector %q: %w", args[0], err)
			}
			opts.Sector = sector

			conf := tessconf.FromEnv()
			dsn := argTICDB
			if dsn == "" {
				dsn = conf.TICDSN
			}
			if dsn == "" {
				return fmt.Errorf("no TIC database configured; set %s or --ticdb", tessconf.EnvTICDB)
			}
			src, err := starcat.NewPostgresSource(dsn)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			pointings, err := conf.LoadPointings()
			if err != nil {
				return err
			}
			return starcat.Build(cmd.Context(), conf, src, pointings, opts)
		},
	}
	cmd.Flags().IntSliceVar(&opts.Cameras, "camera", nil, "Only build for these cameras (1-4)")
	cmd.Flags().IntSliceVar(&opts.CCDs, "ccd", nil, "Only build for these CCDs (1-4)")
	cmd.Flags().Float64Var(&opts.CoordBuffer, "coord-buffer", starcat.DefaultCoordBuffer,
		"Footprint buffer in `DEGREES` for including off-CCD neighbours")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Rebuild catalogs that already exist")
	cmd.Flags().StringVar(&argTICDB, "ticdb", "", "TIC mirror connection `DSN` (defaults to $"+tessconf.EnvTICDB+")")

	argparser.AddCommand(cmd)
}
