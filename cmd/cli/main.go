// Package main is the entry point for the quota simulator CLI.
package main

import (
	"os"

	"github.com/warp/quota-simulator/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
