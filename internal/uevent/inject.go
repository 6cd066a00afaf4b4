//go:build linux

package uevent

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"github.com/cntrmgr/ueventd/internal/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// InjectSubcommand is the cobra Use string the re-exec'd child runs under;
// cmd/ wires a hidden command with this name that calls RunChild.
const InjectSubcommand = "internal-inject-netns"

// ForkInjector implements Injector by re-executing the current binary
// into the target container's namespaces and sending the frame there.
// This mirrors the source's fork+setns dance (uevent_inject_into_netns)
// without the thread-safety hazards of calling fork(2) directly from a
// multi-threaded Go process: Go cannot safely fork without exec, so the
// child's entire body runs as a fresh process instead of post-fork code in
// the parent's address space.
type ForkInjector struct {
	logger  *slog.Logger
	exePath string
}

// NewForkInjector resolves the running executable's path once at startup.
func NewForkInjector(logger *slog.Logger) (*ForkInjector, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	return &ForkInjector{logger: logger, exePath: exe}, nil
}

// Inject re-execs into pid's namespaces and sends payload on a fresh
// uevent netlink socket there. The child's exit status carries success:
// non-zero or a failure to even start the child are both reported as a
// non-fatal error to the caller.
func (f *ForkInjector) Inject(pid int, hasUserns bool, payload []byte) error {
	cmd := exec.Command(f.exePath, InjectSubcommand, strconv.Itoa(pid), strconv.FormatBool(hasUserns))
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("inject child for pid %d: %w: %s", pid, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// RunChild is the re-exec'd child's entire body: join the target
// container's user and network namespaces, then send the uevent read from
// stdin over a fresh NETLINK_KOBJECT_UEVENT socket in that namespace.
// Called only from the hidden cobra command cmd/ wires for
// InjectSubcommand, never directly by the router.
func RunChild(pid int, joinUserns bool, stdin io.Reader) error {
	if joinUserns {
		usernsFd, err := os.Open(fmt.Sprintf("/proc/%d/ns/user", pid))
		if err != nil {
			return fmt.Errorf("open userns of pid %d: %w", pid, err)
		}
		defer usernsFd.Close()
		if err := unix.Setns(int(usernsFd.Fd()), unix.CLONE_NEWUSER); err != nil {
			return fmt.Errorf("join userns of pid %d: %w", pid, err)
		}
		if err := unix.Setuid(0); err != nil {
			return fmt.Errorf("setuid in userns of pid %d: %w", pid, err)
		}
		if err := unix.Setgid(0); err != nil {
			return fmt.Errorf("setgid in userns of pid %d: %w", pid, err)
		}
		if err := unix.Setgroups(nil); err != nil {
			return fmt.Errorf("setgroups in userns of pid %d: %w", pid, err)
		}
	}

	ns, err := netns.GetFromPath(fmt.Sprintf("/proc/%d/ns/net", pid))
	if err != nil {
		return fmt.Errorf("open netns of pid %d: %w", pid, err)
	}
	defer ns.Close()
	if err := netns.Set(ns); err != nil {
		return fmt.Errorf("join netns of pid %d: %w", pid, err)
	}

	payload, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read uevent payload from stdin: %w", err)
	}

	sock, err := netlink.Open(0, 0)
	if err != nil {
		return fmt.Errorf("open uevent socket in target netns: %w", err)
	}
	defer sock.Close()

	return sock.SendUevent(payload)
}
