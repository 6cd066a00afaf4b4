//go:build linux

package uevent

import (
	"bytes"
	"log/slog"
	"strings"
	"time"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/eventloop"
	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/pkg/netutil"
)

// SettlePeriod is the NIC settle timer's tick period. A variable, not a
// constant, so cmd/run.go can bind it to a configuration flag.
var SettlePeriod = 100 * time.Millisecond

// SettleMaxTicks bounds the settle timer's retries at 5s total by default,
// instead of retrying forever.
var SettleMaxTicks = 50

// Dispatcher classifies raw netlink frames: it runs the USB path first,
// routes synth-uuid coldboot replays to a single container, and otherwise
// fans device events out to every registered container or arms the NIC
// settle timer for new physical interfaces.
type Dispatcher struct {
	logger     *slog.Logger
	registry   container.Registry
	usb        *UsbDispatcher
	devnode    *DevnodeProjector
	nic        *NicMover
	loop       *eventloop.Loop
	hostedMode bool

	// isWifi is overridden in tests to avoid depending on real sysfs.
	isWifi func(ifname string) bool
}

// NewDispatcher constructs a dispatcher wired to its collaborators.
func NewDispatcher(logger *slog.Logger, registry container.Registry, usb *UsbDispatcher, devnode *DevnodeProjector, nic *NicMover, loop *eventloop.Loop, hostedMode bool) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		registry:   registry,
		usb:        usb,
		devnode:    devnode,
		nic:        nic,
		loop:       loop,
		hostedMode: hostedMode,
		isWifi:     netutil.IsWifi,
	}
}

// HandleFrame classifies one raw netlink read and dispatches it. buf[:n]
// is the exact datagram read from the socket; it is not retained.
func (d *Dispatcher) HandleFrame(buf []byte, n int, bus *events.Bus) {
	raw := make([]byte, n)
	copy(raw, buf[:n])

	var f *UeventFrame
	if bytes.HasPrefix(raw, []byte(udevPrefix)) {
		f = NewUdevFrame(raw)
	} else if bytes.IndexByte(raw, 0) >= 0 {
		f = NewKernelFrame(raw)
	} else {
		d.logger.Debug("dropping datagram with no uevent framing")
		return
	}

	v, err := Parse(f)
	if err != nil {
		d.logger.Warn("dropping malformed frame", "error", err)
		bus.Publish(events.FrameDroppedEvent{Reason: err.Error()})
		return
	}

	if f.Kind() == KindUdev {
		// udev-framed events are handled purely as telemetry; the
		// kernel-framed duplicate of the same event is what carries
		// forwarding semantics.
		Trace(f, d.logger)
		return
	}

	d.handleKernelEvent(f, v, bus)
}

func (d *Dispatcher) handleKernelEvent(f *UeventFrame, v *UeventView, bus *events.Bus) {
	Trace(f, d.logger)

	if v.Action != "add" && v.Action != "remove" && v.Action != "change" {
		return
	}

	if d.usb.Handle(v) {
		return
	}

	if target, ok := d.registry.ByUUID(v.SynthUUID); ok {
		rewritten, err := RewriteProperty(f, v, "SYNTH_UUID", "0")
		if err != nil {
			d.logger.Error("failed to mask container uuid from SYNTH_UUID", "error", err)
			return
		}
		rv, err := Parse(rewritten)
		if err != nil {
			d.logger.Error("failed to reparse synth-uuid rewrite", "error", err)
			return
		}
		d.devnode.Project(d.registry, target, rewritten, rv)
		return
	}

	if v.Action == "add" && v.Subsystem == "net" && !strings.Contains(v.Devpath, "virtual") && !d.hostedMode {
		d.armSettleTimer(f, v)
		return
	}

	for i := 0; i < d.registry.Count(); i++ {
		c, ok := d.registry.ByIndex(i)
		if !ok {
			continue
		}
		d.devnode.Project(d.registry, c, f, v)
	}
}

// armSettleTimer tracks a freshly appeared physical interface and schedules
// a bounded settle timer that waits for sysfs wifi capability to appear
// before handing off to the NIC mover, bounded so a wifi interface that
// never reports its capability doesn't retry forever.
func (d *Dispatcher) armSettleTimer(f *UeventFrame, v *UeventView) {
	d.nic.phys.Add(v.Interface)

	var timerID uint64
	timerID = d.loop.AddTimer(SettlePeriod, SettleMaxTicks, func() bool {
		if v.Devtype == "wlan" && !d.isWifi(v.Interface) {
			return true
		}
		if err := d.nic.Move(f, v); err != nil {
			d.logger.Warn("did not move net interface", "interface", v.Interface, "error", err)
		} else {
			d.logger.Info("moved net interface to target", "interface", v.Interface)
		}
		d.loop.CancelTimer(timerID)
		return false
	})
}
