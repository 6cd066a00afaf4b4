package uevent

import (
	"testing"

	"github.com/cntrmgr/ueventd/internal/container"
)

func TestRegisterUnregisterUSBRoundTrip(t *testing.T) {
	rt := NewRoutingTable()
	dev := UsbDevice{VendorID: 0x1d6b, ProductID: 0x0002, Serial: "0000:00:14.0", Major: -1, Minor: -1}

	rt.RegisterUSB("c1", dev)
	if !rt.UnregisterUSB("c1", dev.VendorID, dev.ProductID, dev.Serial) {
		t.Fatal("expected unregister to succeed")
	}

	count := 0
	rt.IterUSB(func(UsbMapping) bool { count++; return true })
	if count != 0 {
		t.Fatalf("table not restored to empty state, has %d entries", count)
	}
}

func TestUnregisterUSBMissingIsNoop(t *testing.T) {
	rt := NewRoutingTable()
	if rt.UnregisterUSB("c1", 1, 2, "serial") {
		t.Fatal("expected unregister of absent mapping to report false")
	}
}

func TestRegisterUSBIdempotentReplace(t *testing.T) {
	rt := NewRoutingTable()
	dev := UsbDevice{VendorID: 0x1d6b, ProductID: 0x0002, Serial: "s", Major: -1, Minor: -1}
	rt.RegisterUSB("c1", dev)

	dev2 := dev
	dev2.Major, dev2.Minor = 189, 3
	rt.RegisterUSB("c1", dev2)

	var count int
	var seen UsbDevice
	rt.IterUSB(func(m UsbMapping) bool {
		count++
		seen = m.Device
		return true
	})
	if count != 1 {
		t.Fatalf("expected a single replaced entry, got %d", count)
	}
	if seen.Major != 189 || seen.Minor != 3 {
		t.Fatalf("expected major/minor updated in place, got %+v", seen)
	}
}

func TestRegisterUnregisterNETRoundTrip(t *testing.T) {
	rt := NewRoutingTable()
	pnet := container.PnetCfg{Name: "52:54:00:12:34:56"}

	if err := rt.RegisterNET("c0", pnet); err != nil {
		t.Fatalf("RegisterNET: %v", err)
	}
	mac := [6]byte{0x52, 0x54, 0x00, 0x12, 0x34, 0x56}
	if !rt.UnregisterNET("c0", mac) {
		t.Fatal("expected unregister to succeed")
	}
	if _, ok := rt.FindNetByMAC(mac); ok {
		t.Fatal("expected no mapping after unregister")
	}
}

func TestRegisterNETInvalidMAC(t *testing.T) {
	rt := NewRoutingTable()
	err := rt.RegisterNET("c0", container.PnetCfg{Name: "not-a-mac"})
	if err == nil {
		t.Fatal("expected RegistrationInvalid error for non-MAC pnet name")
	}
}

func TestFindNetByMAC(t *testing.T) {
	rt := NewRoutingTable()
	pnet := container.PnetCfg{Name: "aa:bb:cc:dd:ee:ff", MacFilter: true}
	if err := rt.RegisterNET("c1", pnet); err != nil {
		t.Fatalf("RegisterNET: %v", err)
	}

	mac := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	m, ok := rt.FindNetByMAC(mac)
	if !ok {
		t.Fatal("expected mapping to be found")
	}
	if m.Container != "c1" || !m.Pnet.MacFilter {
		t.Fatalf("unexpected mapping: %+v", m)
	}
}
