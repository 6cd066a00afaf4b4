package updater

import (
	"context"
	"time"
)

// State represents the current state of the update process.
type State string

// Update states.
const (
	StateIdle        State = "idle"
	StateChecking    State = "checking"
	StateAvailable   State = "available"
	StateDownloading State = "downloading"
	StateApplying    State = "applying"
	StateRestarting  State = "restarting"
	StateError       State = "error"
	StateRolledBack  State = "rolled_back"
)

// Service defines the interface for update operations.
type Service interface {
	// CheckForUpdate checks for available updates without downloading.
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)

	// ApplyUpdate downloads and applies an update, then triggers restart.
	ApplyUpdate(ctx context.Context) error

	// Rollback reverts to the previous version.
	Rollback(ctx context.Context) error

	// GetStatus returns current update state and info.
	GetStatus(ctx context.Context) *Status

	// IsEnabled returns whether the update service is enabled.
	// Returns false if permission check failed on startup.
	IsEnabled() bool

	// DisabledReason returns why the service is disabled, empty if enabled.
	DisabledReason() string

	// RunPeriodicCheck polls for a new release every interval until ctx is
	// canceled, optionally applying it automatically. Blocks; call in a
	// goroutine.
	RunPeriodicCheck(ctx context.Context, interval time.Duration, autoApply bool)
}

// UpdateInfo contains information about an available update.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	ReleaseNotes    string
	ReleaseURL      string
	PublishedAt     time.Time
	AssetSize       int
	UpdateAvailable bool
}

// Status contains the current state of the updater.
type Status struct {
	State           State
	CurrentVersion  string
	TargetVersion   string
	Error           string
	LastChecked     *time.Time
	BackupAvailable bool
	BackupVersion   string
}

// Options contains configuration for the updater service. The poll
// interval and auto-apply decision are passed directly to
// RunPeriodicCheck rather than stored here, since they're runtime
// daemon flags rather than properties of the service itself.
type Options struct {
	Repository string // GitHub repo slug, e.g. "cntrmgr/ueventd"
	Prerelease bool   // Whether to include prereleases
}
