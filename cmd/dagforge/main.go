// Package main provides the dagforge CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/dagforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
