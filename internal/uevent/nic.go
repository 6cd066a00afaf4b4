//go:build linux

package uevent

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/pkg/netutil"
)

// Injector is the narrow capability the NIC mover and device-node
// projector both need: re-emit a frame inside a container's namespaces.
// The concrete implementation (ForkInjector, inject.go) forks a child that
// joins the target userns/netns and sends the frame over a fresh netlink
// socket there.
type Injector interface {
	Inject(pid int, hasUserns bool, payload []byte) error
}

// NicMover renames a freshly appeared physical interface and attaches it
// to a container's network namespace.
type NicMover struct {
	logger   *slog.Logger
	registry container.Registry
	attacher container.NetAttacher
	phys     container.PhysNetRegistry
	routing  *RoutingTable
	injector Injector
	bus      *events.Bus

	wlanIdx uint32
	ethIdx  uint32

	// macLookup and renameIface default to the netutil host implementations;
	// tests override them to avoid requiring real network interfaces.
	macLookup   func(ifname string) (net.HardwareAddr, error)
	renameIface func(oldName, newName string) error
}

// NewNicMover constructs a NIC mover wired to its collaborators.
func NewNicMover(logger *slog.Logger, registry container.Registry, attacher container.NetAttacher, phys container.PhysNetRegistry, routing *RoutingTable, injector Injector, bus *events.Bus) *NicMover {
	return &NicMover{
		logger:      logger,
		registry:    registry,
		attacher:    attacher,
		phys:        phys,
		routing:     routing,
		injector:    injector,
		bus:         bus,
		macLookup:   netutil.MACByIfname,
		renameIface: netutil.RenameIface,
	}
}

// Move runs the seven-step rename-and-attach sequence. f/v are the
// possibly-stale frame/view captured when the add event first arrived;
// callers (the settle timer in dispatcher.go) are responsible for deciding
// when sysfs has settled enough to call Move.
func (m *NicMover) Move(f *UeventFrame, v *UeventView) error {
	mac, err := m.macLookup(v.Interface)
	if err != nil {
		m.logger.Warn("interface has no mac, skipping", "interface", v.Interface, "error", err)
		return err
	}
	var macArr [6]byte
	copy(macArr[:], mac)

	var target container.Ref
	pnet := container.PnetCfg{}
	if mapping, found := m.routing.FindNetByMAC(macArr); found {
		target = mapping.Container
		pnet = mapping.Pnet
	} else {
		c0, ok := m.registry.C0()
		if !ok {
			m.logger.Warn("no c0 container registered, cannot move interface", "interface", v.Interface)
			return fmt.Errorf("uevent: no c0 container registered")
		}
		target = c0
	}

	if !m.registry.State(target).IsLiveForNIC() {
		m.logger.Warn("target container is not live, skip moving interface", "interface", v.Interface, "container", m.registry.Name(target))
		return nil
	}

	if pnet.Name == "" {
		pnet = container.PnetCfg{Name: v.Interface, MacFilter: false}
	}

	newName, renameErr := m.renameHost(v.Interface, v.Devtype)
	finalFrame, finalView := f, v
	if renameErr != nil {
		m.logger.Error("failed to rename interface, injecting uevent as-is", "interface", v.Interface, "error", renameErr)
	} else {
		rewritten, viewAfter, rewriteErr := m.renameFrame(f, v, newName)
		if rewriteErr != nil {
			m.logger.Error("failed to rewrite renamed uevent, injecting uevent as-is", "interface", v.Interface, "error", rewriteErr)
		} else {
			finalFrame, finalView = rewritten, viewAfter
		}
	}

	if err := m.attacher.AttachIface(target, pnet); err != nil {
		m.logger.Error("cannot move interface to container", "mac", netutil.MACToString(mac), "container", m.registry.Name(target), "error", err)
		return err
	}
	m.logger.Info("moved physical network interface", "interface", v.Interface, "mac", netutil.MACToString(mac), "container", m.registry.Name(target))

	m.bus.Publish(events.NicMovedEvent{
		Container:    m.registry.Name(target),
		OldInterface: v.Interface,
		NewInterface: finalView.Interface,
		MAC:          netutil.MACToString(mac),
		MacFiltered:  pnet.MacFilter,
	})

	if pnet.MacFilter {
		return nil
	}

	if err := m.injector.Inject(m.registry.PID(target), m.registry.HasUserns(target), finalFrame.Raw()); err != nil {
		m.logger.Warn("could not inject uevent into netns of container", "container", m.registry.Name(target), "error", err)
		m.bus.Publish(events.InjectionFailedEvent{Container: m.registry.Name(target), Reason: err.Error()})
	}
	return nil
}

// renameHost renames the interface on the host to a uniquely-numbered
// cml<kind><N> name, maintaining a monotonic per-kind counter for the
// process lifetime. It also
// migrates the old/new name in the physical-NIC registry.
func (m *NicMover) renameHost(oldName, devtype string) (string, error) {
	kind := "eth"
	if devtype == "wlan" {
		kind = "wlan"
	}

	var idx uint32
	if kind == "wlan" {
		idx = m.wlanIdx
		m.wlanIdx++
	} else {
		idx = m.ethIdx
		m.ethIdx++
	}
	newName := fmt.Sprintf("cml%s%d", kind, idx)

	if err := m.renameIface(oldName, newName); err != nil {
		return "", err
	}

	if m.phys.Remove(oldName) {
		m.phys.Add(newName)
	}

	return newName, nil
}

// renameFrame produces a single rewritten frame carrying both the
// INTERFACE substitution and the matching occurrence within DEVPATH. Both
// substitutions apply to the same frame via two sequential rewrite calls,
// keeping only the final result, rather than two independently rewritten
// frames where one would silently leak.
func (m *NicMover) renameFrame(f *UeventFrame, v *UeventView, newName string) (*UeventFrame, *UeventView, error) {
	f2, err := RewriteProperty(f, v, "INTERFACE", newName)
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite interface: %w", err)
	}
	v2, err := Parse(f2)
	if err != nil {
		return nil, nil, fmt.Errorf("reparse after interface rewrite: %w", err)
	}

	f3, err := RewriteOccurrenceInProperty(f2, v2, "DEVPATH", v.Interface, newName)
	if err != nil {
		return nil, nil, fmt.Errorf("rewrite devpath occurrence: %w", err)
	}
	v3, err := Parse(f3)
	if err != nil {
		return nil, nil, fmt.Errorf("reparse after devpath rewrite: %w", err)
	}
	return f3, v3, nil
}
