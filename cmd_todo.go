package main

import (
	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
	"github.com/tasoc/tessphot/pkg/tessconf"
	"github.com/tasoc/tessphot/pkg/todo"
)

func init() {
	var opts todo.BuildOptions
	cmd := &cobra.Command{
		Use:   "todo [flags]",
		Short: "Build the todo list of targets to process",
		Long: "Scans the input folder for target-pixel files and prepared image " +
			"stacks, matches them against the star catalogs, and writes a todo " +
			"list sorted so the brightest targets are processed first.",
		Args: cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return todo.Build(cmd.Context(), tessconf.FromEnv(), opts)
		},
	}
	cmd.Flags().IntSliceVar(&opts.Cameras, "camera", nil, "Only list targets from these cameras (1-4)")
	cmd.Flags().IntSliceVar(&opts.CCDs, "ccd", nil, "Only list targets from these CCDs (1-4)")
	cmd.Flags().BoolVar(&opts.FindSecondaryTargets, "secondaries", false,
		"Also list catalog stars that fall inside another target's stamp")
	cmd.Flags().StringVar(&opts.ExcludeFile, "exclude-file", "",
		"`PATH` of the exclude list (defaults to "+todo.ExcludeFileName+" in the input folder)")
	cmd.Flags().StringVar(&opts.MethodsFile, "methods-file", "",
		"`PATH` of the method overrides (defaults to "+todo.MethodsFileName+" in the input folder)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Rebuild the todo list if it already exists")

	argparser.AddCommand(cmd)
}
