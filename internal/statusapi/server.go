// Package statusapi exposes a minimal read-only HTTP surface over the
// router's event bus: a huma health endpoint and a Prometheus counters
// page.
package statusapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cntrmgr/ueventd/internal/events"
	"github.com/cntrmgr/ueventd/internal/version"
)

// Server is a read-only status/metrics HTTP server. It never mutates
// router state; registration and coldboot triggers stay an in-process Go
// API for the embedding container manager.
type Server struct {
	mux *http.ServeMux

	devnodeCreated   prometheus.Counter
	devnodeRemoved   prometheus.Counter
	nicMoved         prometheus.Counter
	usbAllowed       prometheus.Counter
	usbDenied        prometheus.Counter
	injectionFailed  prometheus.Counter
	framesDropped    prometheus.Counter
	coldbootTriggers prometheus.Counter
}

// New builds a status server subscribed to bus and serving its Prometheus
// counters and health check from mux.
func New(bus *events.Bus) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		mux:              http.NewServeMux(),
		devnodeCreated:   newCounter(registry, "ueventd_devnode_created_total", "Device nodes created inside container rootfs"),
		devnodeRemoved:   newCounter(registry, "ueventd_devnode_removed_total", "Device nodes removed from container rootfs"),
		nicMoved:         newCounter(registry, "ueventd_nic_moved_total", "Physical interfaces moved into a container netns"),
		usbAllowed:       newCounter(registry, "ueventd_usb_allowed_total", "USB devices allowed via cgroup policy"),
		usbDenied:        newCounter(registry, "ueventd_usb_denied_total", "USB devices denied on remove"),
		injectionFailed:  newCounter(registry, "ueventd_injection_failed_total", "Injector child failures"),
		framesDropped:    newCounter(registry, "ueventd_frames_dropped_total", "Malformed or oversize uevent frames dropped"),
		coldbootTriggers: newCounter(registry, "ueventd_coldboot_triggered_total", "Coldboot uevent triggers written"),
	}

	bus.Subscribe(func(events.DeviceNodeCreatedEvent) { s.devnodeCreated.Inc() })
	bus.Subscribe(func(events.DeviceNodeRemovedEvent) { s.devnodeRemoved.Inc() })
	bus.Subscribe(func(events.NicMovedEvent) { s.nicMoved.Inc() })
	bus.Subscribe(func(events.UsbAllowedEvent) { s.usbAllowed.Inc() })
	bus.Subscribe(func(events.UsbDeniedEvent) { s.usbDenied.Inc() })
	bus.Subscribe(func(events.InjectionFailedEvent) { s.injectionFailed.Inc() })
	bus.Subscribe(func(events.FrameDroppedEvent) { s.framesDropped.Inc() })
	bus.Subscribe(func(events.ColdbootTriggeredEvent) { s.coldbootTriggers.Inc() })

	s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.registerHealth()

	return s
}

func newCounter(registry *prometheus.Registry, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	registry.MustRegister(c)
	return c
}

func (s *Server) registerHealth() {
	config := huma.DefaultConfig("ueventd status API", "1.0.0")
	config.Info.Description = "Read-only health and metrics surface for the uevent router"
	api := humago.New(s.mux, config)

	huma.Register(api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Reports that the ueventd process is serving HTTP, with its version",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, _ *struct{}) (*healthResponse, error) {
		return &healthResponse{Body: healthBody{Status: "ok", Version: version.String()}}, nil
	})
}

type healthBody struct {
	Status  string `json:"status" doc:"Always \"ok\" when the process is reachable"`
	Version string `json:"version"`
}

type healthResponse struct {
	Body healthBody
}

// Handler returns the underlying http.Handler, for ListenAndServe or a
// caller-owned server with its own timeouts.
func (s *Server) Handler() http.Handler {
	return s.mux
}
