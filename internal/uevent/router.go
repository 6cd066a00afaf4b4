//go:build linux

package uevent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/eventloop"
	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/internal/netlink"
)

// Router is the process-wide uevent subsystem: it owns the netlink socket,
// the single-threaded event loop, the routing tables, and every component
// in this package, and exposes the administrative API the container
// manager calls on container lifecycle transitions (register/unregister
// USB and net mappings, trigger a coldboot replay).
type Router struct {
	logger *slog.Logger

	registry container.Registry
	routing  *RoutingTable
	bus      *events.Bus

	usb        *UsbDispatcher
	devnode    *DevnodeProjector
	nic        *NicMover
	dispatcher *Dispatcher
	coldboot   *ColdbootDriver

	loop *eventloop.Loop

	recvBufferSize int

	mu     sync.Mutex
	sock   *netlink.Socket
	cancel context.CancelFunc
	done   chan struct{}
}

// Deps bundles the external collaborators Router needs, supplied by the
// embedding container manager via internal/container's interfaces.
type Deps struct {
	Registry container.Registry
	Policy   container.DevicePolicy
	IDShift  container.IDShifter
	Tokens   container.TokenManager
	Attacher container.NetAttacher
	Phys     container.PhysNetRegistry
	Injector Injector
	Bus      *events.Bus

	// HostedMode mirrors cmld_is_hostedmode_active: when true the NIC
	// mover's settle-timer path for new physical interfaces is skipped.
	HostedMode bool

	// RecvBufferSize overrides the netlink socket's SO_RCVBUF when
	// non-zero.
	RecvBufferSize int
}

// NewRouter wires every component in this package from deps. It does not
// open the netlink socket; call Init for that.
func NewRouter(logger *slog.Logger, deps Deps) *Router {
	routing := NewRoutingTable()

	usb := NewUsbDispatcher(logger.With("component", "usb"), deps.Policy, deps.Tokens, routing, deps.Bus)
	devnode := NewDevnodeProjector(logger.With("component", "devnode"), deps.Policy, deps.IDShift, deps.Injector, deps.Bus)
	nic := NewNicMover(logger.With("component", "nic"), deps.Registry, deps.Attacher, deps.Phys, routing, deps.Injector, deps.Bus)
	loop := eventloop.New(logger.With("component", "eventloop"), SettlePeriod)
	dispatcher := NewDispatcher(logger.With("component", "dispatcher"), deps.Registry, usb, devnode, nic, loop, deps.HostedMode)
	coldboot := NewColdbootDriver(logger.With("component", "coldboot"), deps.Policy, deps.Bus)

	return &Router{
		logger:         logger,
		registry:       deps.Registry,
		routing:        routing,
		bus:            deps.Bus,
		usb:            usb,
		devnode:        devnode,
		nic:            nic,
		dispatcher:     dispatcher,
		coldboot:       coldboot,
		loop:           loop,
		recvBufferSize: deps.RecvBufferSize,
	}
}

// Init opens the uevent netlink socket and starts the event loop on a
// background goroutine, mirroring uevent_init's socket-then-io-watcher
// setup. It returns once the socket is bound; the loop itself runs until
// Deinit is called or the socket errors.
func (r *Router) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock != nil {
		return fmt.Errorf("uevent: router already initialized")
	}

	sock, err := netlink.Open(netlink.GroupKernel, 0)
	if err != nil {
		return fmt.Errorf("open uevent netlink socket: %w", err)
	}
	if r.recvBufferSize > 0 {
		if err := sock.SetRecvBufferSize(r.recvBufferSize); err != nil {
			r.logger.Warn("could not set netlink recv buffer size", "size", r.recvBufferSize, "error", err)
		}
	}
	r.sock = sock

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	buf := make([]byte, MaxFrameSize)
	go func() {
		defer close(r.done)
		err := r.loop.Run(ctx, sock, buf, func(n int) {
			r.dispatcher.HandleFrame(buf, n, r.bus)
		})
		if err != nil && ctx.Err() == nil {
			r.logger.Error("uevent read loop exited", "error", err)
		}
	}()

	return nil
}

// Deinit stops the event loop and closes the netlink socket, mirroring
// uevent_deinit.
func (r *Router) Deinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sock == nil {
		return nil
	}
	r.cancel()
	<-r.done
	err := r.sock.Close()
	r.sock = nil
	return err
}

// RegisterUSBDevice adds a USB routing entry for container c.
func (r *Router) RegisterUSBDevice(c container.Ref, dev UsbDevice) {
	r.routing.RegisterUSB(c, dev)
	r.logger.Info("registered usb device", "container", r.registry.Name(c), "vendor", dev.VendorID, "product", dev.ProductID, "serial", dev.Serial)
}

// UnregisterUSBDevice removes a previously registered USB routing entry.
func (r *Router) UnregisterUSBDevice(c container.Ref, vendor, product uint16, serial string) bool {
	ok := r.routing.UnregisterUSB(c, vendor, product, serial)
	if ok {
		r.logger.Info("unregistered usb device", "container", r.registry.Name(c), "vendor", vendor, "product", product, "serial", serial)
	}
	return ok
}

// RegisterNetDev adds a NET routing entry for container c.
func (r *Router) RegisterNetDev(c container.Ref, pnet container.PnetCfg) error {
	if err := r.routing.RegisterNET(c, pnet); err != nil {
		return err
	}
	r.logger.Info("registered netdev", "container", r.registry.Name(c), "pnet", pnet.Name)
	return nil
}

// UnregisterNetDev removes a previously registered NET routing entry.
func (r *Router) UnregisterNetDev(c container.Ref, mac [6]byte) bool {
	ok := r.routing.UnregisterNET(c, mac)
	if ok {
		r.logger.Info("unregistered netdev", "container", r.registry.Name(c))
	}
	return ok
}

// TriggerColdboot replays add events for every allowed device already
// present in sysfs, targeted at container c via uuid.
func (r *Router) TriggerColdboot(c container.Ref, uuid string) {
	r.coldboot.Trigger(c, uuid)
}
