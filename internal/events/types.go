package events

// Event type constants for kelindar/event.
const (
	TypeDeviceNodeCreated uint32 = iota + 1
	TypeDeviceNodeRemoved
	TypeNicMoved
	TypeUsbAllowed
	TypeUsbDenied
	TypeInjectionFailed
	TypeFrameDropped
	TypeColdbootTriggered
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// DeviceNodeCreatedEvent is published when the device-node projector
// creates or fixes up a node inside a container rootfs.
type DeviceNodeCreatedEvent struct {
	Container string `json:"container" doc:"Container name the node was created in"`
	Path      string `json:"path" doc:"Absolute path of the device node inside the rootfs"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
}

// Type returns the event type identifier for DeviceNodeCreatedEvent.
func (e DeviceNodeCreatedEvent) Type() uint32 { return TypeDeviceNodeCreated }

// DeviceNodeRemovedEvent is published when a device node is unlinked.
type DeviceNodeRemovedEvent struct {
	Container string `json:"container"`
	Path      string `json:"path"`
}

// Type returns the event type identifier for DeviceNodeRemovedEvent.
func (e DeviceNodeRemovedEvent) Type() uint32 { return TypeDeviceNodeRemoved }

// NicMovedEvent is published when the NIC mover attaches a physical
// interface to a container's network namespace.
type NicMovedEvent struct {
	Container    string `json:"container"`
	OldInterface string `json:"old_interface"`
	NewInterface string `json:"new_interface"`
	MAC          string `json:"mac"`
	MacFiltered  bool   `json:"mac_filtered"`
}

// Type returns the event type identifier for NicMovedEvent.
func (e NicMovedEvent) Type() uint32 { return TypeNicMoved }

// UsbAllowedEvent is published when the USB dispatcher allows a
// device node for a container via cgroup policy.
type UsbAllowedEvent struct {
	Container string `json:"container"`
	Vendor    uint16 `json:"vendor"`
	Product   uint16 `json:"product"`
	Serial    string `json:"serial"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Assign    bool   `json:"assign"`
}

// Type returns the event type identifier for UsbAllowedEvent.
func (e UsbAllowedEvent) Type() uint32 { return TypeUsbAllowed }

// UsbDeniedEvent is published when a previously-allowed USB device node is
// revoked after a remove event.
type UsbDeniedEvent struct {
	Container string `json:"container"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
}

// Type returns the event type identifier for UsbDeniedEvent.
func (e UsbDeniedEvent) Type() uint32 { return TypeUsbDenied }

// InjectionFailedEvent is published when the injector child exits
// non-zero or cannot be forked. This is a warning, never fatal.
type InjectionFailedEvent struct {
	Container string `json:"container"`
	Reason    string `json:"reason"`
}

// Type returns the event type identifier for InjectionFailedEvent.
func (e InjectionFailedEvent) Type() uint32 { return TypeInjectionFailed }

// FrameDroppedEvent is published when the codec or dispatcher drops a
// malformed or oversize frame.
type FrameDroppedEvent struct {
	Reason string `json:"reason"`
}

// Type returns the event type identifier for FrameDroppedEvent.
func (e FrameDroppedEvent) Type() uint32 { return TypeFrameDropped }

// ColdbootTriggeredEvent is published for each sysfs uevent file written
// during a coldboot walk.
type ColdbootTriggeredEvent struct {
	Container string `json:"container"`
	Path      string `json:"path"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
}

// Type returns the event type identifier for ColdbootTriggeredEvent.
func (e ColdbootTriggeredEvent) Type() uint32 { return TypeColdbootTriggered }
