//go:build linux

package uevent

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/container/memory"
	"github.com/cntrmgr/ueventd/internal/eventloop"
	"github.com/cntrmgr/ueventd/internal/events"
)

func buildKernelFrameRaw(action, subsystem, devpath string, extra ...string) ([]byte, *UeventFrame, *UeventView) {
	var b []byte
	header := action + "@" + devpath
	b = append(b, header...)
	b = append(b, 0)
	props := []string{"ACTION=" + action, "SUBSYSTEM=" + subsystem, "DEVPATH=" + devpath}
	props = append(props, extra...)
	for _, p := range props {
		b = append(b, p...)
		b = append(b, 0)
	}
	f := NewKernelFrame(b)
	v, err := Parse(f)
	if err != nil {
		panic(err)
	}
	return b, f, v
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Registry, *memory.DevicePolicy, *memory.IDShifter, *fakeInjector, *eventloop.Loop) {
	t.Helper()
	// Settle timers armed by these tests tick every millisecond so they
	// fire within the tests' short loop runs.
	prevPeriod := SettlePeriod
	SettlePeriod = time.Millisecond
	t.Cleanup(func() { SettlePeriod = prevPeriod })

	reg := memory.NewRegistry()
	reg.Add("c0", "uuid-0", "c0", container.StateRunning, 100, t.TempDir(), true)

	policy := memory.NewDevicePolicy()
	idshift := &memory.IDShifter{}
	injector := &fakeInjector{}
	bus := events.New()

	usbPolicy := memory.NewDevicePolicy()
	tokens := memory.NewTokenManager()
	routing := NewRoutingTable()
	usb := NewUsbDispatcher(slog.Default(), usbPolicy, tokens, routing, bus)

	devnode := NewDevnodeProjector(slog.Default(), policy, idshift, injector, bus)

	attacher := memory.NewNetAttacher()
	phys := memory.NewPhysNetRegistry()
	nic := NewNicMover(slog.Default(), reg, attacher, phys, routing, injector, bus)
	nic.macLookup = func(string) (net.HardwareAddr, error) {
		return net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, nil
	}
	nic.renameIface = func(string, string) error { return nil }

	loop := eventloop.New(slog.Default(), time.Millisecond)
	d := NewDispatcher(slog.Default(), reg, usb, devnode, nic, loop, false)

	return d, reg, policy, idshift, injector, loop
}

func TestDispatcherSynthUUIDRoutesToSingleContainer(t *testing.T) {
	requireMknod(t)
	d, reg, policy, _, injector, _ := newTestDispatcher(t)
	c, _ := reg.ByUUID("uuid-0")
	policy.Allow(c, 10, 50, false)

	_, f, v := buildKernelFrameRaw("add", "misc", "/devices/virtual/misc/foo",
		"DEVNAME=foo", "MAJOR=10", "MINOR=50", "SYNTH_UUID=uuid-0")

	bus := events.New()
	d.handleKernelEvent(f, v, bus)

	if injector.calls != 1 {
		t.Fatalf("expected exactly one injection (only the target container), got %d", injector.calls)
	}
	if !strings.Contains(string(injector.payload), "SYNTH_UUID=0") {
		t.Fatalf("expected rewritten frame to carry SYNTH_UUID=0, got %q", injector.payload)
	}
	if strings.Contains(string(injector.payload), "SYNTH_UUID=uuid-0") {
		t.Fatal("expected original synth uuid to be fully replaced")
	}
}

func TestDispatcherArmsSettleTimerForNewPhysicalNIC(t *testing.T) {
	d, _, _, _, injector, loop := newTestDispatcher(t)

	_, f, v := buildKernelFrameRaw("add", "net", "/devices/pci0000:00/eth5",
		"DEVTYPE=eth", "INTERFACE=eth5")

	bus := events.New()
	d.handleKernelEvent(f, v, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = loop.Run(ctx, fakeReaderNoop{}, make([]byte, 8), nil)

	if injector.calls != 1 {
		t.Fatalf("expected settle timer to move the interface and inject once, got %d", injector.calls)
	}
}

func TestDispatcherWifiSettleWaitsForSysfs(t *testing.T) {
	d, _, _, _, injector, loop := newTestDispatcher(t)
	ready := false
	d.isWifi = func(string) bool { return ready }

	_, f, v := buildKernelFrameRaw("add", "net", "/devices/pci0000:00/wlan0",
		"DEVTYPE=wlan", "INTERFACE=wlan0")

	bus := events.New()
	d.handleKernelEvent(f, v, bus)

	ctx1, cancel1 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	_ = loop.Run(ctx1, fakeReaderNoop{}, make([]byte, 8), nil)
	cancel1()
	if injector.calls != 0 {
		t.Fatal("expected no move while sysfs wifi capability is not yet visible")
	}

	ready = true
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_ = loop.Run(ctx2, fakeReaderNoop{}, make([]byte, 8), nil)
	if injector.calls != 1 {
		t.Fatalf("expected exactly one move once sysfs settled, got %d", injector.calls)
	}
}

func TestDispatcherDropsMalformedUdevMagic(t *testing.T) {
	d, _, _, _, injector, _ := newTestDispatcher(t)

	raw := make([]byte, 64)
	copy(raw, []byte("libudev"))
	bus := events.New()
	recorder := make(chan events.FrameDroppedEvent, 1)
	unsub := bus.Subscribe(func(e events.FrameDroppedEvent) {
		recorder <- e
	})
	defer unsub()

	d.HandleFrame(raw, len(raw), bus)

	select {
	case <-recorder:
	default:
		t.Fatal("expected a FrameDroppedEvent for malformed udev magic")
	}
	if injector.calls != 0 {
		t.Fatal("expected no injection for a dropped malformed frame")
	}
}

func TestDispatcherFansOutToAllRegisteredContainers(t *testing.T) {
	requireMknod(t)
	d, reg, policy, _, injector, _ := newTestDispatcher(t)
	reg.Add("c1", "uuid-1", "c1", container.StateRunning, 200, t.TempDir(), true)
	policy.Allow("c0", 10, 50, false)
	policy.Allow("c1", 10, 50, false)

	_, f, v := buildKernelFrameRaw("add", "misc", "/devices/virtual/misc/foo",
		"DEVNAME=foo", "MAJOR=10", "MINOR=50")

	bus := events.New()
	d.handleKernelEvent(f, v, bus)

	if injector.calls != 2 {
		t.Fatalf("expected fan-out to both registered containers, got %d", injector.calls)
	}
}

// fakeReaderNoop never has data ready; used to drive the loop purely for
// its timer-firing behavior in dispatcher tests.
type fakeReaderNoop struct{}

func (fakeReaderNoop) SetReadTimeout(sec, usec int64) error { return nil }
func (fakeReaderNoop) Recv(buf []byte) (int, bool, error)   { return 0, false, nil }
