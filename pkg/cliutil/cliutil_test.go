package cliutil_test

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoc/tessphot/pkg/cliutil"
)

func TestWrap(t *testing.T) {
	t.Parallel()
	testcases := map[string]struct {
		width    int
		input    string
		expected string
	}{
		"no-wrapping":   {0, "alpha beta gamma delta", "alpha beta gamma delta"},
		"fits":          {80, "alpha beta", "alpha beta"},
		"simple":        {20, "alpha beta gamma delta", "alpha beta\ngamma delta"},
		"overlong-word": {10, "incomprehensibilities yes", "incomprehensibilities\nyes"},
	}
	for tcName, tc := range testcases {
		tc := tc
		t.Run(tcName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, cliutil.Wrap(tc.width, tc.input))
		})
	}
}

func TestWrapIndent(t *testing.T) {
	t.Parallel()

	got := cliutil.WrapIndent(2, 20, "alpha beta gamma delta")
	assert.Equal(t, "alpha beta\n  gamma delta", got)

	// Existing newlines are kept and indented:
	got = cliutil.WrapIndent(2, 80, "alpha\nbeta")
	assert.Equal(t, "alpha\n  beta", got)
}

//nolint:paralleltest // can't use .Parallel() with .Setenv()
func TestHelpTemplate(t *testing.T) {
	t.Setenv("COLUMNS", "80")

	cmd := &cobra.Command{
		Use:   "tessphot {[flags]|SUBCOMMAND...}",
		Short: "Extract lightcurves from TESS pixel data",
		Long: "The photometry pipeline runs in stages.  Each stage reads what the " +
			"previous one left in the input folder, so the stages can also be run " +
			"on their own.",
		RunE: func(_ *cobra.Command, _ []string) error { return nil },
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "todo",
		Short: "Build the todo list",
		RunE:  func(_ *cobra.Command, _ []string) error { return nil },
	})
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.SetHelpTemplate(cliutil.HelpTemplate)

	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())

	help := out.String()
	assert.Contains(t, help, "Usage: tessphot {[flags]|SUBCOMMAND...}\n")
	assert.Contains(t, help, "Extract lightcurves from TESS pixel data\n")
	assert.Contains(t, help, "Available Commands:")
	assert.Contains(t, help, "todo")
	assert.Contains(t, help, "--debug")
	// The long text was wrapped to the 80-column terminal:
	for _, line := range strings.Split(help, "\n") {
		assert.LessOrEqual(t, len(line), 80, "line: %q", line)
	}
}
