// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command courier declares topology, publishes and consumes through the
// courier reliability layer.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		slog.Error("courier failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
