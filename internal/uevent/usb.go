//go:build linux

package uevent

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/events"
)

// UsbDispatcher routes add/remove events for USB devices at the
// usb_device level to the token subsystem or to cgroup device policy,
// according to the registered USB mappings.
type UsbDispatcher struct {
	logger  *slog.Logger
	policy  container.DevicePolicy
	tokens  container.TokenManager
	routing *RoutingTable
	bus     *events.Bus

	// readSerial reads a USB device's iSerial from sysfs; overridden in
	// tests to avoid requiring a real sysfs tree.
	readSerial func(devpath string) (string, bool)
}

// NewUsbDispatcher constructs a USB dispatcher wired to its collaborators.
func NewUsbDispatcher(logger *slog.Logger, policy container.DevicePolicy, tokens container.TokenManager, routing *RoutingTable, bus *events.Bus) *UsbDispatcher {
	return &UsbDispatcher{
		logger:     logger,
		policy:     policy,
		tokens:     tokens,
		routing:    routing,
		bus:        bus,
		readSerial: readSysfsSerial,
	}
}

// Handle processes one kernel uevent. It returns true if the event was
// handled completely by the USB path (the dispatcher must not also forward
// it as a device node), false if the caller should continue processing it
// (including events outside subsystem=usb devtype=usb_device, which this
// dispatcher ignores entirely).
func (d *UsbDispatcher) Handle(v *UeventView) bool {
	if v.Subsystem != "usb" || v.Devtype != "usb_device" {
		return false
	}

	switch v.Action {
	case "remove":
		return d.handleRemove(v)
	case "add":
		return d.handleAdd(v)
	}
	return false
}

func (d *UsbDispatcher) handleRemove(v *UeventView) bool {
	if v.Devpath != "" {
		err := d.tokens.Detach(v.Devpath)
		if err == nil {
			d.logger.Debug("uevent was triggered by a container token, finished handling", "devpath", v.Devpath)
			return true
		}
		if !errors.Is(err, container.ErrNotAToken) {
			d.logger.Warn("token detach failed", "devpath", v.Devpath, "error", err)
		}
	}

	for i, m := range d.routing.usb {
		if m.Device.Major == v.Major && m.Device.Minor == v.Minor {
			if err := d.policy.Deny(m.Container, m.Device.Major, m.Device.Minor); err != nil {
				d.logger.Warn("could not deny device", "container", m.Container, "error", err)
				continue
			}
			d.logger.Info("denied access to unbound device node", "major", m.Device.Major, "minor", m.Device.Minor, "container", m.Container)
			d.bus.Publish(events.UsbDeniedEvent{Container: string(m.Container), Major: m.Device.Major, Minor: m.Device.Minor})
			d.routing.usb[i].Device.Major = -1
			d.routing.usb[i].Device.Minor = -1
		}
	}
	return false
}

func (d *UsbDispatcher) handleAdd(v *UeventView) bool {
	serial, ok := d.readSerial(v.Devpath)
	if !ok || serial == "" {
		d.logger.Debug("failed to read serial of usb device", "devpath", v.Devpath)
		return false
	}

	if v.Devpath != "" {
		err := d.tokens.Attach(serial, v.Devpath)
		if err == nil {
			d.logger.Debug("uevent was triggered by a container token, finished handling", "devpath", v.Devpath)
			return true
		}
		if !errors.Is(err, container.ErrNotAToken) {
			d.logger.Warn("token attach failed", "devpath", v.Devpath, "error", err)
		}
	}

	vendorID, productID := v.VendorID(), v.ModelID()
	for i, m := range d.routing.usb {
		if m.Device.VendorID != vendorID || m.Device.ProductID != productID || m.Device.Serial != serial {
			continue
		}
		d.routing.usb[i].Device.Major = v.Major
		d.routing.usb[i].Device.Minor = v.Minor

		verb := "allow"
		if m.Device.Assign {
			verb = "assign"
		}
		if err := d.policy.Allow(m.Container, v.Major, v.Minor, m.Device.Assign); err != nil {
			d.logger.Warn("could not allow device", "container", m.Container, "error", err)
			continue
		}
		d.logger.Info(verb+" bound device node", "major", v.Major, "minor", v.Minor, "container", m.Container)
		d.bus.Publish(events.UsbAllowedEvent{
			Container: string(m.Container),
			Vendor:    vendorID,
			Product:   productID,
			Serial:    serial,
			Major:     v.Major,
			Minor:     v.Minor,
			Assign:    m.Device.Assign,
		})
	}
	return false
}

// readSysfsSerial reads a USB device's serial number file from sysfs,
// stripping a single trailing newline as upstream udevd leaves it.
func readSysfsSerial(devpath string) (string, bool) {
	if devpath == "" {
		return "", false
	}
	path := fmt.Sprintf("/sys%s/serial", devpath)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	serial := strings.TrimSuffix(string(data), "\n")
	return serial, serial != ""
}
