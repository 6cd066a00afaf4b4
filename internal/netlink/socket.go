//go:build linux

// Package netlink provides a pure-Go AF_NETLINK socket wrapper for the
// NETLINK_KOBJECT_UEVENT protocol: binding to the kernel/udev multicast
// groups, polling reads with a deadline so callers can interleave other
// work, and sending a framed UEVENT_SEND message while waiting for the
// kernel's ack. Frame parsing itself lives in package uevent; this package
// owns only the socket and wire framing of netlink messages.
package netlink

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// protoKobjectUevent is NETLINK_KOBJECT_UEVENT.
	protoKobjectUevent = 15

	// GroupKernel is the kernel multicast group bit.
	GroupKernel = 1
	// GroupUdev is the udev multicast group bit.
	GroupUdev = 2

	// maxFrameSize is the largest uevent message the kernel will emit.
	maxFrameSize = 8192

	// ueventSend is the netlink message type used to inject an event.
	ueventSend = 16
)

// Socket wraps an AF_NETLINK/NETLINK_KOBJECT_UEVENT file descriptor.
type Socket struct {
	fd int
}

// Open creates a netlink uevent socket and binds it to the given multicast
// groups (OR of GroupKernel/GroupUdev), optionally pinning a portid so the
// daemon does not collide with a peer udev daemon on the same netlink
// family.
func Open(groups uint32, portid uint32) (*Socket, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, protoKobjectUevent)
	if err != nil {
		return nil, fmt.Errorf("netlink: socket: %w", err)
	}

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Pid:    portid,
		Groups: groups,
	}
	if bindErr := syscall.Bind(fd, addr); bindErr != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("netlink: bind: %w", bindErr)
	}

	return &Socket{fd: fd}, nil
}

// Fd returns the underlying file descriptor, for registration with an
// external IO readiness watcher.
func (s *Socket) Fd() int {
	return s.fd
}

// Close releases the socket.
func (s *Socket) Close() error {
	return syscall.Close(s.fd)
}

// SetRecvBufferSize sets SO_RCVBUF, raising the kernel's default socket
// buffer so a burst of uevents does not overrun the queue before Recv is
// called again.
func (s *Socket) SetRecvBufferSize(bytes int) error {
	return syscall.SetsockoptInt(s.fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, bytes)
}

// SetReadTimeout sets SO_RCVTIMEO so Recv can be polled without blocking
// the caller's event loop indefinitely.
func (s *Socket) SetReadTimeout(sec, usec int64) error {
	tv := syscall.Timeval{Sec: sec, Usec: usec}
	return syscall.SetsockoptTimeval(s.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv)
}

// Recv reads one datagram into buf, returning the number of bytes read.
// ok is false on a timeout or interrupted syscall, which callers should
// treat as "try again", not as an error.
func (s *Socket) Recv(buf []byte) (n int, ok bool, err error) {
	n, _, recvErr := syscall.Recvfrom(s.fd, buf, 0)
	if recvErr != nil {
		if errors.Is(recvErr, syscall.EAGAIN) || errors.Is(recvErr, syscall.EWOULDBLOCK) || errors.Is(recvErr, syscall.EINTR) {
			return 0, false, nil
		}
		return 0, false, recvErr
	}
	return n, true, nil
}

// SendUevent frames payload as a netlink UEVENT_SEND message with
// NLM_F_REQUEST|NLM_F_ACK and waits for the kernel's ack. payload is copied
// verbatim into the message body; no additional framing is applied. It is
// the caller's responsibility to have already joined the target namespace
// (see internal/uevent's Injector) before calling this on a freshly opened
// socket.
func (s *Socket) SendUevent(payload []byte) error {
	msg := buildNlMsg(ueventSend, unix.NLM_F_REQUEST|unix.NLM_F_ACK, payload)

	dest := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK}
	if err := syscall.Sendto(s.fd, msg, 0, dest); err != nil {
		return fmt.Errorf("netlink: sendto: %w", err)
	}

	return s.waitAck()
}

// waitAck reads one netlink datagram and returns on its first NLMSG_ERROR
// message, with an error if the kernel reported a non-zero errno; a
// datagram without an NLMSG_ERROR message is an error too.
func (s *Socket) waitAck() error {
	buf := make([]byte, maxFrameSize)
	if err := s.SetReadTimeout(5, 0); err != nil {
		return fmt.Errorf("netlink: set ack timeout: %w", err)
	}

	n, _, err := syscall.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return fmt.Errorf("netlink: recv ack: %w", err)
	}

	msgs, err := parseNlMsgs(buf[:n])
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if m.header.Type != unix.NLMSG_ERROR {
			continue
		}
		errno := nlMsgErrno(m.data)
		if errno != 0 {
			return fmt.Errorf("netlink: kernel nack: errno %d", -errno)
		}
		return nil
	}
	return errors.New("netlink: no ack in response")
}

// nlMsg is one parsed netlink message.
type nlMsg struct {
	header unix.NlMsghdr
	data   []byte
}

// buildNlMsg assembles a single netlink message with the given type, flags
// and payload, padded and length-prefixed per the netlink wire format.
func buildNlMsg(msgType uint16, flags uint16, payload []byte) []byte {
	const hdrLen = unix.SizeofNlMsghdr
	total := nlmAlignLen(hdrLen + len(payload))
	buf := make([]byte, total)

	hdr := (*unix.NlMsghdr)(unsafe.Pointer(&buf[0]))
	hdr.Len = uint32(hdrLen + len(payload))
	hdr.Type = msgType
	hdr.Flags = flags
	hdr.Seq = 1
	hdr.Pid = 0

	copy(buf[hdrLen:], payload)
	return buf
}

// parseNlMsgs splits a netlink datagram into its constituent messages.
func parseNlMsgs(buf []byte) ([]nlMsg, error) {
	var msgs []nlMsg
	for len(buf) >= unix.SizeofNlMsghdr {
		hdr := (*unix.NlMsghdr)(unsafe.Pointer(&buf[0]))
		if int(hdr.Len) < unix.SizeofNlMsghdr || int(hdr.Len) > len(buf) {
			return nil, fmt.Errorf("netlink: malformed message header, len=%d", hdr.Len)
		}
		msgs = append(msgs, nlMsg{
			header: *hdr,
			data:   buf[unix.SizeofNlMsghdr:hdr.Len],
		})
		buf = buf[nlmAlignLen(int(hdr.Len)):]
	}
	return msgs, nil
}

// nlMsgErrno extracts the errno field from an NLMSG_ERROR payload.
func nlMsgErrno(data []byte) int32 {
	if len(data) < 4 {
		return -1
	}
	return int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16 | int32(data[3])<<24
}

// nlmAlignLen rounds up to the netlink 4-byte alignment boundary.
func nlmAlignLen(l int) int {
	return (l + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
}
