//go:build linux

package uevent

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/events"
	"golang.org/x/sys/unix"
)

// DevnodeProjector creates or removes a device node inside a container's
// root filesystem and forwards the event into the container's namespace.
type DevnodeProjector struct {
	logger   *slog.Logger
	policy   container.DevicePolicy
	idshift  container.IDShifter
	injector Injector
	bus      *events.Bus
}

// NewDevnodeProjector constructs a device-node projector.
func NewDevnodeProjector(logger *slog.Logger, policy container.DevicePolicy, idshift container.IDShifter, injector Injector, bus *events.Bus) *DevnodeProjector {
	return &DevnodeProjector{logger: logger, policy: policy, idshift: idshift, injector: injector, bus: bus}
}

// Project applies the device-node contract for one container, mirroring
// uevent_device_node_and_forward: skip silently unless c is in a live
// state, skip (without forwarding) if cgroup policy forbids the device,
// otherwise create/remove the node and attempt to forward the event into
// the container's namespace. A failed node creation on add skips
// forwarding; a failed removal is only warned.
func (p *DevnodeProjector) Project(reg container.Registry, c container.Ref, f *UeventFrame, v *UeventView) {
	if !reg.State(c).IsLiveForDevnode() {
		return
	}
	if !p.policy.IsAllowed(c, v.Major, v.Minor) {
		p.logger.Debug("skipping device forbidden by cgroup policy", "devname", v.Devname, "major", v.Major, "minor", v.Minor, "container", reg.Name(c))
		return
	}

	path := devnodePath(reg.RootDir(c), v.Devname)

	switch v.Action {
	case "add":
		if err := p.createNode(c, path, v); err != nil {
			p.logger.Error("could not create device node", "path", path, "error", err)
			return
		}
		p.bus.Publish(events.DeviceNodeCreatedEvent{Container: reg.Name(c), Path: path, Major: v.Major, Minor: v.Minor})
	case "remove":
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("could not remove device node", "path", path, "error", err)
		}
		p.bus.Publish(events.DeviceNodeRemovedEvent{Container: reg.Name(c), Path: path})
	}

	if err := p.injector.Inject(reg.PID(c), reg.HasUserns(c), f.Raw()); err != nil {
		p.logger.Warn("could not inject uevent into netns of container", "container", reg.Name(c), "error", err)
		p.bus.Publish(events.InjectionFailedEvent{Container: reg.Name(c), Reason: err.Error()})
	}
}

// devnodePath mirrors the source's "%s%s%s" join: newer udev versions
// already prefix DEVNAME with /dev/, older ones don't.
func devnodePath(rootdir, devname string) string {
	if strings.HasPrefix(devname, "/dev/") {
		return rootdir + devname
	}
	return rootdir + "/dev/" + devname
}

// createNode creates the device node if it does not already exist, then
// shifts its ownership into the container's user namespace.
func (p *DevnodeProjector) createNode(c container.Ref, path string, v *UeventView) error {
	if _, err := os.Stat(path); err == nil {
		p.logger.Debug("node exists, fixing up ids only", "path", path)
		return p.idshift.Shift(c, path, false)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	mode := uint32(syscall.S_IFCHR)
	if v.Devtype == "disk" {
		mode = syscall.S_IFBLK
	}
	dev := unix.Mkdev(uint32(v.Major), uint32(v.Minor))

	if err := syscall.Mknod(path, mode, int(dev)); err != nil {
		return err
	}

	return p.idshift.Shift(c, path, false)
}
