//go:build linux

package main

import (
	"os"

	"github.com/cntrmgr/ueventd/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
