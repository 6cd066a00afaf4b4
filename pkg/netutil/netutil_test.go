//go:build linux

package netutil

import "testing"

func TestStringToMACRoundTrip(t *testing.T) {
	mac, err := StringToMAC("52:54:00:12:34:56")
	if err != nil {
		t.Fatalf("StringToMAC: %v", err)
	}
	if got := MACToString(mac); got != "52:54:00:12:34:56" {
		t.Fatalf("MACToString round trip: got %q", got)
	}
}

func TestStringToMACInvalid(t *testing.T) {
	if _, err := StringToMAC("not-a-mac"); err == nil {
		t.Fatal("expected error for invalid MAC string")
	}
}

func TestIsWifiNonexistentInterface(t *testing.T) {
	if IsWifi("nonexistent0-for-test") {
		t.Fatal("expected false for a nonexistent interface")
	}
}

func TestMACToStringLowercases(t *testing.T) {
	mac, err := StringToMAC("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("StringToMAC: %v", err)
	}
	if got := MACToString(mac); got != "aa:bb:cc:dd:ee:ff" {
		t.Fatalf("expected lowercase, got %q", got)
	}
}
