//go:build linux

package uevent

import (
	"fmt"

	"github.com/cntrmgr/ueventd/internal/container"
	"github.com/cntrmgr/ueventd/pkg/netutil"
)

// UsbKind classifies a registered USB device's role.
type UsbKind int

const (
	UsbGeneric UsbKind = iota
	UsbToken
	UsbPinEntry
)

// UsbDevice is an administratively registered USB device. Major/Minor
// start at -1 and are populated once a matching add event is observed.
type UsbDevice struct {
	Kind      UsbKind
	VendorID  uint16
	ProductID uint16
	Serial    string
	Major     int
	Minor     int
	Assign    bool
}

// UsbMapping associates a registered UsbDevice with its target container.
type UsbMapping struct {
	Container container.Ref
	Device    UsbDevice
}

func (m UsbMapping) identity() (container.Ref, uint16, uint16, string) {
	return m.Container, m.Device.VendorID, m.Device.ProductID, m.Device.Serial
}

// NetMapping associates a MAC address with a target container and its
// physical-network configuration.
type NetMapping struct {
	Container container.Ref
	Pnet      container.PnetCfg
	MAC       [6]byte
}

// RoutingTable holds two association lists: USB
// (vendor,product,serial)->container and MAC->(container,pnet_cfg). Both
// are scanned linearly; cardinalities are small (tens of entries) and
// mutated only from the single dispatcher goroutine, so no locking is
// used.
type RoutingTable struct {
	usb []UsbMapping
	net []NetMapping
}

// NewRoutingTable creates empty USB and NET routing tables.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// RegisterUSB adds a mapping, or — if one with identical (container,
// vendor, product, serial) already exists — replaces its device state in
// place (idempotent registration).
func (rt *RoutingTable) RegisterUSB(c container.Ref, dev UsbDevice) {
	for i := range rt.usb {
		cc, vv, pp, ss := rt.usb[i].identity()
		if cc == c && vv == dev.VendorID && pp == dev.ProductID && ss == dev.Serial {
			rt.usb[i].Device = dev
			return
		}
	}
	rt.usb = append(rt.usb, UsbMapping{Container: c, Device: dev})
}

// UnregisterUSB removes a mapping by identity. It is a no-op (returns
// false) if no such mapping is registered.
func (rt *RoutingTable) UnregisterUSB(c container.Ref, vendor, product uint16, serial string) bool {
	for i := range rt.usb {
		cc, vv, pp, ss := rt.usb[i].identity()
		if cc == c && vv == vendor && pp == product && ss == serial {
			rt.usb = append(rt.usb[:i], rt.usb[i+1:]...)
			return true
		}
	}
	return false
}

// IterUSB calls fn for each registered USB mapping, stopping early if fn
// returns false. fn receives a copy of each mapping, so changes it makes
// are not stored; UpdateUSBDevice changes a stored mapping.
func (rt *RoutingTable) IterUSB(fn func(UsbMapping) bool) {
	for _, m := range rt.usb {
		if !fn(m) {
			return
		}
	}
}

// UpdateUSBDevice rewrites the device state of an existing mapping
// identified by (container, vendor, product, serial). The USB dispatcher
// does not call it; it updates major/minor on the stored entries directly.
func (rt *RoutingTable) UpdateUSBDevice(c container.Ref, vendor, product uint16, serial string, updated UsbDevice) {
	for i := range rt.usb {
		cc, vv, pp, ss := rt.usb[i].identity()
		if cc == c && vv == vendor && pp == product && ss == serial {
			rt.usb[i].Device = updated
			return
		}
	}
}

// RegisterNET adds or updates a NET mapping for container c. It fails if
// pnet.Name is not a parseable MAC address.
func (rt *RoutingTable) RegisterNET(c container.Ref, pnet container.PnetCfg) error {
	mac, err := netutil.StringToMAC(pnet.Name)
	if err != nil {
		return fmt.Errorf("uevent: register_netdev: %w", err)
	}
	var arr [6]byte
	copy(arr[:], mac)

	for i := range rt.net {
		if rt.net[i].Container == c && rt.net[i].MAC == arr {
			rt.net[i].Pnet = pnet
			return nil
		}
	}
	rt.net = append(rt.net, NetMapping{Container: c, Pnet: pnet, MAC: arr})
	return nil
}

// UnregisterNET removes a NET mapping by (container, mac). A no-op
// (returns false) if not present.
func (rt *RoutingTable) UnregisterNET(c container.Ref, mac [6]byte) bool {
	for i := range rt.net {
		if rt.net[i].Container == c && rt.net[i].MAC == mac {
			rt.net = append(rt.net[:i], rt.net[i+1:]...)
			return true
		}
	}
	return false
}

// IterNET calls fn for each registered NET mapping, stopping early if fn
// returns false.
func (rt *RoutingTable) IterNET(fn func(NetMapping) bool) {
	for _, m := range rt.net {
		if !fn(m) {
			return
		}
	}
}

// FindNetByMAC returns the first NetMapping registered for mac, if any.
func (rt *RoutingTable) FindNetByMAC(mac [6]byte) (NetMapping, bool) {
	for _, m := range rt.net {
		if m.MAC == mac {
			return m, true
		}
	}
	return NetMapping{}, false
}
