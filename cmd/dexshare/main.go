// Package main is the entry point for the dexshare CLI.
package main

import (
	"os"

	"github.com/mrcode/dexshare-widget/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
