//go:build pin
// +build pin

// Package pin pins the tool version in go.mod; the tools/bin/% rule in the
// top-level Makefile builds the import below.
package pin

import _ "github.com/mattn/goveralls"
