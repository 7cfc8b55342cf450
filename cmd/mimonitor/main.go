// Package main is the entry point for the mimonitor CLI.
package main

import (
	"os"

	"github.com/motioninput/mimonitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
