//go:build linux

package uevent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/events"
)

// sysfsDevicesRoot is where the coldboot walk starts; a variable so tests
// can point it at a throwaway tree.
var sysfsDevicesRoot = "/sys/devices"

// SetSysfsDevicesRoot overrides the coldboot walk's starting directory,
// for binding to the sysfs-devices-dir configuration flag.
func SetSysfsDevicesRoot(path string) {
	if path != "" {
		sysfsDevicesRoot = path
	}
}

// ColdbootDriver replays add events for every device already present at
// container start by writing into each device's sysfs "uevent" attribute
// file.
type ColdbootDriver struct {
	logger *slog.Logger
	policy container.DevicePolicy
	bus    *events.Bus
}

// NewColdbootDriver constructs a coldboot driver.
func NewColdbootDriver(logger *slog.Logger, policy container.DevicePolicy, bus *events.Bus) *ColdbootDriver {
	return &ColdbootDriver{logger: logger, policy: policy, bus: bus}
}

// Trigger walks sysfsDevicesRoot recursively, and for every "uevent"
// attribute file whose sibling "dev" file parses as "major:minor" and
// whose device is allowed for c, writes "add <uuid>" to trigger a
// synthetic event the dispatcher's synth-uuid routing will later deliver
// only to c.
func (d *ColdbootDriver) Trigger(c container.Ref, uuid string) {
	err := filepath.WalkDir(sysfsDevicesRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			// sysfs churns constantly (devices appear/disappear mid-walk);
			// skip the unreadable entry rather than aborting the walk.
			return nil
		}
		if entry.IsDir() || entry.Name() != "uevent" {
			return nil
		}
		d.triggerOne(c, uuid, path)
		return nil
	})
	if err != nil {
		d.logger.Warn("could not trigger coldboot uevents", "path", sysfsDevicesRoot, "error", err)
	}
}

func (d *ColdbootDriver) triggerOne(c container.Ref, uuid, ueventPath string) {
	dir := filepath.Dir(ueventPath)
	devFile := filepath.Join(dir, "dev")

	data, err := os.ReadFile(devFile)
	if err != nil {
		return
	}

	major, minor, ok := parseMajorMinor(string(data))
	if !ok {
		return
	}

	if !d.policy.IsAllowed(c, major, minor) {
		d.logger.Debug("skipping coldboot trigger for forbidden device", "path", ueventPath, "major", major, "minor", minor)
		return
	}

	trigger := "add " + uuid
	if err := os.WriteFile(ueventPath, []byte(trigger), 0o200); err != nil {
		d.logger.Warn("could not trigger coldboot event", "path", ueventPath, "trigger", trigger, "error", err)
		return
	}
	d.logger.Debug("triggered coldboot event", "path", ueventPath, "trigger", trigger)
	d.bus.Publish(events.ColdbootTriggeredEvent{Container: string(c), Path: ueventPath, Major: major, Minor: minor})
}

// parseMajorMinor parses the "MAJOR:MINOR\n" contents of a sysfs dev file.
func parseMajorMinor(s string) (major, minor int, ok bool) {
	s = strings.TrimSpace(s)
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return 0, 0, false
	}
	n, err := fmt.Sscanf(s, "%d:%d", &major, &minor)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	if major < 0 || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}
