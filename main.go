// Command tessphot extracts lightcurves from TESS pixel data. Each pipeline
// stage is a subcommand; they communicate through the input folder, so the
// stages can run on their own or back to back.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tasoc/tessphot/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "tessphot {[flags]|SUBCOMMAND...}",
	Short: "Extract lightcurves from TESS pixel data",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	var argDebug, argQuiet bool
	argparser.PersistentFlags().BoolVar(&argDebug, "debug", false, "Log debug messages")
	argparser.PersistentFlags().BoolVar(&argQuiet, "quiet", false, "Only log warnings and errors")
	argparser.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		logger := logrus.New()
		switch {
		case argDebug:
			logger.SetLevel(logrus.DebugLevel)
		case argQuiet:
			logger.SetLevel(logrus.WarnLevel)
		default:
			logger.SetLevel(logrus.InfoLevel)
		}
		dlog.SetFallbackLogger(dlog.WrapLogrus(logger))
	}
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
