//go:build linux

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cntrmgr/ueventd/internal/config"
	"github.com/cntrmgr/ueventd/internal/container/memory"
	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/internal/logging"
	"github.com/cntrmgr/ueventd/internal/statusapi"
	"github.com/cntrmgr/ueventd/internal/uevent"
	"github.com/cntrmgr/ueventd/internal/updater"
)

func newRunCmd() *cobra.Command {
	opts := &config.Options{}
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the uevent router daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}

			logging.Initialize(logging.Config{
				Level:  opts.LoggingLevel,
				Format: opts.LoggingFormat,
				Modules: map[string]string{
					"uevent": opts.LoggingUevent,
					"nic":    opts.LoggingNic,
					"usb":    opts.LoggingUsb,
					"inject": opts.LoggingInject,
				},
			})
			logger := logging.GetLogger("uevent")

			uevent.SettlePeriod = time.Duration(opts.SettlePeriodMs) * time.Millisecond
			uevent.SettleMaxTicks = opts.SettleMaxTicks
			uevent.SetSysfsDevicesRoot(opts.SysfsDevicesDir)

			bus := events.New()

			injector, err := uevent.NewForkInjector(logging.GetLogger("inject"))
			if err != nil {
				return err
			}

			router := uevent.NewRouter(logger, uevent.Deps{
				Registry:       memory.NewRegistry(),
				Policy:         memory.NewDevicePolicy(),
				IDShift:        &memory.IDShifter{},
				Tokens:         memory.NewTokenManager(),
				Attacher:       memory.NewNetAttacher(),
				Phys:           memory.NewPhysNetRegistry(),
				Injector:       injector,
				Bus:            bus,
				HostedMode:     opts.HostedMode,
				RecvBufferSize: opts.NetlinkRecvBufferSize,
			})

			if err := router.Init(); err != nil {
				return err
			}
			defer func() {
				if err := router.Deinit(); err != nil {
					logger.Warn("error during shutdown", "error", err)
				}
			}()

			watcher := config.NewConfigWatcher(opts.Config, func(path string) (config.Options, error) {
				fresh := config.Options{Config: path}
				err := config.LoadConfig(&fresh, nil)
				return fresh, err
			}, logger)
			watcher.OnReload(func(o config.Options) {
				logging.Initialize(logging.Config{
					Level:  o.LoggingLevel,
					Format: o.LoggingFormat,
					Modules: map[string]string{
						"uevent": o.LoggingUevent,
						"nic":    o.LoggingNic,
						"usb":    o.LoggingUsb,
						"inject": o.LoggingInject,
					},
				})
				logger.Info("config file changed, logging re-initialized", "level", o.LoggingLevel, "format", o.LoggingFormat)
			})
			if err := watcher.Start(); err != nil {
				logger.Warn("config watcher disabled", "path", opts.Config, "error", err)
			} else {
				defer watcher.Stop()
			}

			updateSvc, err := updater.NewService(&updater.Options{
				Repository: opts.UpdateRepository,
				Prerelease: opts.UpdatePrerelease,
			})
			if err != nil {
				logger.Warn("update service unavailable", "error", err)
			} else if updateSvc.IsEnabled() && opts.UpdateCheckMinutes > 0 {
				updateCtx, cancelUpdate := context.WithCancel(context.Background())
				defer cancelUpdate()
				go updateSvc.RunPeriodicCheck(updateCtx, time.Duration(opts.UpdateCheckMinutes)*time.Minute, opts.UpdateAutoApply)
			}

			status := statusapi.New(bus)
			httpServer := &http.Server{Addr: statusAddr, Handler: status.Handler()}
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Warn("status server exited", "error", err)
				}
			}()
			defer httpServer.Close()

			logger.Info("ueventd started", "status_addr", statusAddr, "hosted_mode", opts.HostedMode)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			logger.Info("ueventd shutting down")
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "ueventd.toml", "Path to configuration file")
	cmd.Flags().IntVar(&opts.NetlinkRecvBufferSize, "netlink-recv-buffer-size", 212992, "Netlink socket receive buffer size in bytes")
	cmd.Flags().BoolVar(&opts.HostedMode, "hosted-mode", false, "Run in hosted mode (skip physical NIC settle-timer path)")
	cmd.Flags().IntVar(&opts.SettlePeriodMs, "settle-period-ms", 100, "NIC settle-timer poll period in milliseconds")
	cmd.Flags().IntVar(&opts.SettleMaxTicks, "settle-max-ticks", 50, "Maximum settle-timer retries before giving up")
	cmd.Flags().StringVar(&opts.SysfsDevicesDir, "sysfs-devices-dir", "/sys/devices", "sysfs devices root used for coldboot replay")
	cmd.Flags().StringVar(&opts.LoggingLevel, "logging-level", "info", "Global logging level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.LoggingFormat, "logging-format", "text", "Logging format (text, json)")
	cmd.Flags().StringVar(&statusAddr, "status-addr", ":9090", "Address for the read-only status/metrics HTTP server")
	cmd.Flags().StringVar(&opts.UpdateRepository, "update-repository", "cntrmgr/ueventd", "GitHub repo slug to check for self-updates")
	cmd.Flags().BoolVar(&opts.UpdatePrerelease, "update-prerelease", false, "Include prereleases when checking for self-updates")
	cmd.Flags().IntVar(&opts.UpdateCheckMinutes, "update-check-minutes", 0, "Self-update check interval in minutes (0 disables periodic checks)")
	cmd.Flags().BoolVar(&opts.UpdateAutoApply, "update-auto-apply", false, "Apply and restart automatically when a newer release is found")

	return cmd
}
