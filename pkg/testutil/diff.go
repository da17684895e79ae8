// Package testutil has test helpers for comparing the pipeline's bulkier
// data structures, where a unified diff reads much better than a one-line
// "not equal".
package testutil

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// Dump renders a value deterministically, one field per line.
func Dump(v interface{}) string {
	return spewConfig.Sdump(v)
}

// AssertEqual compares two values by their dumps and reports a unified diff
// on mismatch.
func AssertEqual(t *testing.T, exp, act interface{}) bool {
	t.Helper()
	expStr := Dump(exp)
	actStr := Dump(act)
	if expStr == actStr {
		return true
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	t.Errorf("mismatch:\n%s", diff)
	return false
}
