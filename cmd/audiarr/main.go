// Package main is the entry point for the audiarr application.
package main

import (
	"os"

	"github.com/jmylchreest/audiarr/cmd/audiarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
