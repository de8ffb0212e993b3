// Package main is the entry point for the hwcodec command.
package main

import (
	"os"

	"github.com/jmylchreest/hwcodec/cmd/hwcodec/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
