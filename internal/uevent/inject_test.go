//go:build linux

package uevent

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestForkInjectorSucceedsWhenChildExitsZero(t *testing.T) {
	trueBin, err := findExecutable("true")
	if err != nil {
		t.Skipf("no true(1) binary available: %v", err)
	}
	f := &ForkInjector{logger: slog.Default(), exePath: trueBin}
	if err := f.Inject(1, false, []byte("ACTION=add\x00")); err != nil {
		t.Fatalf("Inject: %v", err)
	}
}

func TestForkInjectorReturnsErrorWhenChildExitsNonzero(t *testing.T) {
	falseBin, err := findExecutable("false")
	if err != nil {
		t.Skipf("no false(1) binary available: %v", err)
	}
	f := &ForkInjector{logger: slog.Default(), exePath: falseBin}
	if err := f.Inject(1, false, []byte("ACTION=add\x00")); err == nil {
		t.Fatal("expected error when child exits non-zero")
	}
}

func TestForkInjectorReturnsErrorWhenExecutableMissing(t *testing.T) {
	f := &ForkInjector{logger: slog.Default(), exePath: "/nonexistent/binary/path"}
	err := f.Inject(1, false, []byte("ACTION=add\x00"))
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
	if !strings.Contains(err.Error(), "1") {
		t.Fatalf("expected error to mention pid, got %q", err)
	}
}

func TestRunChildFailsForNonexistentPid(t *testing.T) {
	if _, err := os.Stat("/proc"); err != nil {
		t.Skip("no /proc in this environment")
	}
	// A pid this large is extremely unlikely to exist.
	err := RunChild(1<<30, false, bytes.NewReader([]byte("ACTION=add\x00")))
	if err == nil {
		t.Fatal("expected error joining netns of a nonexistent pid")
	}
}

// findExecutable looks up a coreutils-style binary on PATH without
// depending on exec.LookPath's error formatting in assertions.
func findExecutable(name string) (string, error) {
	for _, dir := range strings.Split(os.Getenv("PATH"), ":") {
		candidate := dir + "/" + name
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return "", os.ErrNotExist
}
