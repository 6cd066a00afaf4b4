// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"uevent.nic": "debug",  // Per-component overrides
//			"uevent.usb": "warn",
//		},
//	})
//
// Get a logger for your component:
//
//	logger := logging.GetLogger("uevent.codec")
//	logger.Info("frame parsed", "action", view.Action)
//	logger.Debug("trace", "raw", frame.Raw())
//	logger.Warn("malformed frame", "reason", err)
//	logger.Error("injection failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("uevent.nic").With("interface", ifname)
//	logger.Info("moved to container")  // includes interface in all logs
//
// # Log Levels
//
//	debug - Verbose, per-property trace detail (the old uevent_trace TRACE level)
//	info  - General operational messages
//	warn  - Warning conditions (dropped/malformed frames, policy denies)
//	error - Error conditions (injection failures, fork failures)
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// After Initialize, every handler chain also includes a ring-buffer handler
// (readable via GetBuffer), so the chain is a MultiHandler.
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t ueventd              # All ueventd logs
//	journalctl -t ueventd -f           # Follow live
//	journalctl -t ueventd --since "5m" # Last 5 minutes
//	journalctl -t ueventd -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t ueventd MODULE=uevent COMPONENT=nic
//
// # Configuration
//
// Log levels can be set globally or per-component. Component-specific levels
// override the global level for that component only.
//
// Example TOML configuration, as read by ueventd's config loader (one key
// per module: uevent, nic, usb, inject):
//
//	[logging]
//	level = "info"
//	format = "text"
//	uevent = "debug"
//	inject = "warn"
package logging
