//go:build linux

package netlink

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestBuildNlMsgLength(t *testing.T) {
	payload := []byte("hello")
	msg := buildNlMsg(ueventSend, unix.NLM_F_REQUEST|unix.NLM_F_ACK, payload)

	if len(msg) < unix.SizeofNlMsghdr+len(payload) {
		t.Fatalf("message too short: %d", len(msg))
	}
	if len(msg)%unix.NLMSG_ALIGNTO != 0 {
		t.Fatalf("message not aligned: %d", len(msg))
	}
}

func TestParseNlMsgsRoundTrip(t *testing.T) {
	payload := []byte("payload-bytes")
	msg := buildNlMsg(ueventSend, unix.NLM_F_REQUEST, payload)

	msgs, err := parseNlMsgs(msg)
	if err != nil {
		t.Fatalf("parseNlMsgs: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].header.Type != ueventSend {
		t.Fatalf("unexpected type: %d", msgs[0].header.Type)
	}
	if string(msgs[0].data) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", msgs[0].data, payload)
	}
}

func TestParseNlMsgsMalformed(t *testing.T) {
	buf := make([]byte, unix.SizeofNlMsghdr)
	hdr := (*unix.NlMsghdr)(nil)
	_ = hdr
	buf[0] = 0xff // bogus huge length in first byte
	buf[1] = 0xff
	buf[2] = 0xff
	buf[3] = 0xff

	if _, err := parseNlMsgs(buf); err == nil {
		t.Fatal("expected error for malformed header length")
	}
}

func TestOpenAndCloseRequiresPrivilege(t *testing.T) {
	sock, err := Open(GroupKernel, 0)
	if err != nil {
		t.Skipf("netlink uevent socket unavailable in this environment: %v", err)
	}
	defer sock.Close()

	if sock.Fd() < 0 {
		t.Fatal("expected valid fd")
	}
	if setErr := sock.SetReadTimeout(0, 100000); setErr != nil {
		t.Fatalf("SetReadTimeout: %v", setErr)
	}
}
