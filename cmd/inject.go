//go:build linux

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cntrmgr/ueventd/internal/uevent"
)

// newInjectCmd wires the hidden re-exec target the injector's parent
// process spawns: join pid's namespaces and forward the frame read from
// stdin. Never invoked directly by an operator.
func newInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    uevent.InjectSubcommand + " <pid> <has-userns>",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			hasUserns, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid has-userns %q: %w", args[1], err)
			}
			return uevent.RunChild(pid, hasUserns, os.Stdin)
		},
	}
	return cmd
}
