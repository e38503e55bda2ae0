// Package main provides the entry point for the ragidx CLI.
package main

import (
	"os"

	"github.com/ragidx/ragidx/cmd/ragidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
