// Copyright (C) 2020  Ambassador Labs (for Telepresence)
// Copyright (C) 2021  Ambassador Labs (for ocibuild)
//
// SPDX-License-Identifier: Apache-2.0
//
// Based on
// https://github.com/telepresenceio/telepresence/blob/b6dfa04ff014915b47386191cc3d8b1352522fea/pkg/client/cli/command_group.go#L35-L63

package cliutil

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// GetTerminalWidth returns the width that help text should wrap to.
func GetTerminalWidth() int {
	// Obey COLUMNS if the shell or the user sets it.
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil {
		return cols
	}

	if cols, _, err := term.GetSize(1); err == nil {
		return cols
	}

	if term.IsTerminal(1) {
		return 80
	}

	// Not a terminal; 0 means "don't wrap".
	return 0
}
