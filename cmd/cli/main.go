// Package main is the entry point for the listgate CLI.
// The CLI is the operator terminal tool for interacting with the listgate API.
package main

import (
	"listgate/cmd/cli/cmd"
	"os"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
