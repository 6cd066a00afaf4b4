// Package container defines the narrow collaborator interfaces the uevent
// router consumes from the surrounding container manager: the container
// registry, cgroup device policy, id-shift helper, token subsystem, and
// physical-NIC registry. Section 1 of the router's specification lists
// these as external and out of scope; this package gives them a concrete
// Go shape so the router compiles and its tests can drive real control
// flow against the in-memory fake in internal/container/memory.
package container

import "errors"

// Ref identifies a container. It is opaque to the router: callers obtain
// one from Registry lookups and pass it back into the other collaborator
// interfaces.
type Ref string

// State is a container's lifecycle state as tracked by the container
// manager.
type State int

const (
	StateStopped State = iota
	StateBooting
	StateStarting
	StateSetup
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBooting:
		return "booting"
	case StateStarting:
		return "starting"
	case StateSetup:
		return "setup"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsLiveForNIC reports whether a container is eligible to receive a moved
// network interface. This is a positive membership test, not an always-true
// "!=" chain.
func (s State) IsLiveForNIC() bool {
	return s == StateBooting || s == StateRunning || s == StateStarting
}

// IsLiveForDevnode reports whether a container is eligible to receive a
// device node projection.
func (s State) IsLiveForDevnode() bool {
	return s == StateBooting || s == StateRunning || s == StateSetup
}

// Registry is the container lookup surface the dispatcher and NIC/devnode
// paths consult to resolve targets.
type Registry interface {
	ByUUID(uuid string) (Ref, bool)
	ByIndex(idx int) (Ref, bool)
	Count() int
	C0() (Ref, bool)
	State(c Ref) State
	PID(c Ref) int
	RootDir(c Ref) string
	HasUserns(c Ref) bool
	Name(c Ref) string
	UUID(c Ref) string
}

// DevicePolicy is the cgroup device allow/deny actuator.
type DevicePolicy interface {
	Allow(c Ref, major, minor int, assign bool) error
	Deny(c Ref, major, minor int) error
	IsAllowed(c Ref, major, minor int) bool
}

// IDShifter translates file ownership into a container's user-namespace
// mapping after a device node is created.
type IDShifter interface {
	Shift(c Ref, path string, recursive bool) error
}

// ErrNotAToken is returned by TokenManager.Detach when the device path did
// not correspond to a registered security token.
var ErrNotAToken = errors.New("container: device is not a token")

// TokenManager drives the hardware security token subsystem that some USB
// devices are bound to instead of ordinary cgroup policy.
type TokenManager interface {
	// Attach associates a serial number with a devpath. err is nil on
	// success; ErrNotAToken indicates the device is not a token, which the
	// USB dispatcher treats as "continue processing this event".
	Attach(serial, devpath string) error
	// Detach tears down a previously attached token. err is nil when the
	// device was a token and has been detached; ErrNotAToken when it was
	// not, in which case the USB dispatcher falls through to mapping-based
	// cgroup revocation.
	Detach(devpath string) error
}

// NetAttacher moves a physical interface into a container's network
// namespace, grounded on the original's container_add_net_iface. It is a
// distinct interface from Registry because attaching an interface is a
// mutating, possibly slow operation the NIC mover calls once per move,
// unlike the read-only Registry lookups.
type NetAttacher interface {
	AttachIface(c Ref, pnet PnetCfg) error
}

// PhysNetRegistry tracks which host network interfaces are currently
// claimed as "physical" (moved or movable into a container), so the
// dispatcher does not double-claim one still in flight.
type PhysNetRegistry interface {
	Add(name string)
	Remove(name string) bool
	List() []string
}

// PnetCfg is a container's physical-network configuration: the interface
// name it expects and whether the guest sees a MAC-filtered bridge rather
// than the raw device.
type PnetCfg struct {
	Name      string
	MacFilter bool
}
