// Package main provides the zeev CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/zeev/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
