//go:build linux

package uevent

import (
	"log/slog"
	"testing"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/container/memory"
	"github.com/cntrmgr/ueventd/internal/events"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	reg := memory.NewRegistry()
	reg.Add("c1", "uuid-1", "c1", container.StateRunning, 100, t.TempDir(), true)

	deps := Deps{
		Registry: reg,
		Policy:   memory.NewDevicePolicy(),
		IDShift:  &memory.IDShifter{},
		Tokens:   memory.NewTokenManager(),
		Attacher: memory.NewNetAttacher(),
		Phys:     memory.NewPhysNetRegistry(),
		Injector: &fakeInjector{},
		Bus:      events.New(),
	}
	return NewRouter(slog.Default(), deps)
}

func TestRouterRegisterUnregisterUSBDevice(t *testing.T) {
	r := newTestRouter(t)
	dev := UsbDevice{VendorID: 0x1234, ProductID: 0x5678, Serial: "SN1", Major: -1, Minor: -1}
	r.RegisterUSBDevice("c1", dev)

	found := false
	r.routing.IterUSB(func(m UsbMapping) bool {
		if m.Container == "c1" && m.Device.Serial == "SN1" {
			found = true
			return false
		}
		return true
	})
	if !found {
		t.Fatal("expected usb device to be registered")
	}

	if !r.UnregisterUSBDevice("c1", 0x1234, 0x5678, "SN1") {
		t.Fatal("expected unregister to succeed")
	}
	if r.UnregisterUSBDevice("c1", 0x1234, 0x5678, "SN1") {
		t.Fatal("expected second unregister to be a no-op")
	}
}

func TestRouterRegisterUnregisterNetDev(t *testing.T) {
	r := newTestRouter(t)
	if err := r.RegisterNetDev("c1", container.PnetCfg{Name: "52:54:00:12:34:56"}); err != nil {
		t.Fatalf("RegisterNetDev: %v", err)
	}

	var mac [6]byte
	copy(mac[:], []byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56})
	if !r.UnregisterNetDev("c1", mac) {
		t.Fatal("expected unregister to succeed")
	}
}

func TestRouterRegisterNetDevRejectsInvalidMAC(t *testing.T) {
	r := newTestRouter(t)
	if err := r.RegisterNetDev("c1", container.PnetCfg{Name: "not-a-mac"}); err == nil {
		t.Fatal("expected invalid mac to be rejected")
	}
}

func TestRouterTriggerColdbootDelegates(t *testing.T) {
	root := t.TempDir()
	old := sysfsDevicesRoot
	sysfsDevicesRoot = root
	defer func() { sysfsDevicesRoot = old }()

	r := newTestRouter(t)
	// An empty sysfs tree: Trigger should complete without error.
	r.TriggerColdboot("c1", "uuid-1")
}
