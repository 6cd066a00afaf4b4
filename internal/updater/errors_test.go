package updater

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	withCause := newError(ErrCodeCheckFailed, "failed to check for updates", errors.New("network down"))
	want := "CHECK_FAILED: failed to check for updates: network down"
	if withCause.Error() != want {
		t.Errorf("Error() = %q, want %q", withCause.Error(), want)
	}
	if !errors.Is(withCause, withCause) {
		t.Error("errors.Is should match itself")
	}
	if errors.Unwrap(withCause).Error() != "network down" {
		t.Errorf("Unwrap() = %v, want network down", errors.Unwrap(withCause))
	}

	withoutCause := newError(ErrCodeDisabled, "no write permission", nil)
	if withoutCause.Error() != "DISABLED: no write permission" {
		t.Errorf("Error() = %q, want %q", withoutCause.Error(), "DISABLED: no write permission")
	}
}

func TestDisabledServiceRejectsEveryOperation(t *testing.T) {
	svc := &service{
		enabled:        false,
		disabledReason: "no write permission to /usr/bin",
		state:          StateIdle,
		logger:         slog.Default(),
	}

	if svc.IsEnabled() {
		t.Fatal("disabled service reports enabled")
	}
	if svc.DisabledReason() == "" {
		t.Fatal("disabled service has no reason")
	}

	ctx := context.Background()
	if _, err := svc.CheckForUpdate(ctx); err == nil {
		t.Error("CheckForUpdate should fail when disabled")
	}
	if err := svc.ApplyUpdate(ctx); err == nil {
		t.Error("ApplyUpdate should fail when disabled")
	}
	if err := svc.Rollback(ctx); err == nil {
		t.Error("Rollback should fail when disabled")
	}

	svc.RunPeriodicCheck(ctx, 0, false) // interval <= 0 returns immediately
}
