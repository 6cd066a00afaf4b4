//go:build linux

// Package cmd holds the cobra subcommands for the ueventd binary: the
// default daemon run, a manual coldboot trigger, and the hidden re-exec
// target the injector uses to enter a container's namespaces.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cntrmgr/ueventd/internal/version"
)

// NewRootCmd builds the ueventd root command with all subcommands wired.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ueventd",
		Short:   "uevent router daemon",
		Long:    `ueventd listens on the kernel uevent netlink socket and projects hotplug events into running containers.`,
		Version: version.String(),
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newColdbootCmd())
	root.AddCommand(newInjectCmd())

	return root
}
