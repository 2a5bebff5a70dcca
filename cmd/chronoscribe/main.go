// Package main is the entry point for the chronoscribe CLI.
package main

import (
	"os"

	"github.com/chronoscribe/chronoscribe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
