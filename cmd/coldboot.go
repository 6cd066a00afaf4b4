//go:build linux

package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/internal/logging"
	"github.com/cntrmgr/ueventd/internal/uevent"
)

// allowAllPolicy lets every device through, standing in for the real
// cgroup policy the container manager would otherwise supply when this
// subcommand runs outside the daemon process.
type allowAllPolicy struct{}

func (allowAllPolicy) Allow(container.Ref, int, int, bool) error { return nil }
func (allowAllPolicy) Deny(container.Ref, int, int) error        { return nil }
func (allowAllPolicy) IsAllowed(container.Ref, int, int) bool    { return true }

func newColdbootCmd() *cobra.Command {
	var sysfsDir string

	cmd := &cobra.Command{
		Use:   "coldboot <container-uuid>",
		Short: "Manually replay sysfs uevents for a container",
		Long:  `Walks sysfs and writes "add <uuid>" into the uevent attribute file of every device whose sibling dev file holds a major:minor number, for invoking the coldboot replay outside of the normal container-start hook.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid container uuid %q: %w", args[0], err)
			}

			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("uevent").With("component", "coldboot")

			uevent.SetSysfsDevicesRoot(sysfsDir)

			bus := events.New()
			count := 0
			unsub := bus.Subscribe(func(events.ColdbootTriggeredEvent) { count++ })
			defer unsub()

			driver := uevent.NewColdbootDriver(logger, allowAllPolicy{}, bus)
			driver.Trigger(container.Ref(id.String()), id.String())

			fmt.Fprintf(os.Stdout, "triggered %d coldboot events for container %s\n", count, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&sysfsDir, "sysfs-devices-dir", "/sys/devices", "sysfs devices root to walk")
	return cmd
}
