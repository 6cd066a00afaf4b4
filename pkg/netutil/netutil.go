//go:build linux

// Package netutil provides the small set of host network helpers the
// uevent router needs: MAC lookup/formatting, interface rename, and wifi
// capability detection via sysfs.
package netutil

import (
	"fmt"
	"net"
	"os"
	"strings"

	vishnetlink "github.com/vishvananda/netlink"
)

// MACByIfname returns the hardware address of a host network interface.
func MACByIfname(name string) (net.HardwareAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("netutil: lookup %s: %w", name, err)
	}
	if len(iface.HardwareAddr) == 0 {
		return nil, fmt.Errorf("netutil: %s has no hardware address", name)
	}
	return iface.HardwareAddr, nil
}

// MACToString formats a MAC the way event properties and pnet configs
// expect: lowercase colon-separated hex.
func MACToString(mac net.HardwareAddr) string {
	return strings.ToLower(mac.String())
}

// StringToMAC parses a colon-separated MAC string, returning an error
// wrapping net.ParseMAC's failure so RegistrationInvalid callers can
// surface it directly.
func StringToMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("netutil: %q is not a MAC address: %w", s, err)
	}
	return mac, nil
}

// RenameIface renames a host network interface via an rtnetlink
// IFLA_IFNAME request.
func RenameIface(oldName, newName string) error {
	link, err := vishnetlink.LinkByName(oldName)
	if err != nil {
		return fmt.Errorf("netutil: rename lookup %s: %w", oldName, err)
	}
	if err := vishnetlink.LinkSetName(link, newName); err != nil {
		return fmt.Errorf("netutil: rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// IsWifi reports whether the named interface exposes the wireless sysfs
// directory the kernel creates for 802.11 devices.
func IsWifi(name string) bool {
	_, err := os.Stat("/sys/class/net/" + name + "/wireless")
	return err == nil
}
