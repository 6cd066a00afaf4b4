package uevent

import "encoding/binary"

const (
	// MaxFrameSize is the largest uevent message the kernel or udev will
	// ever emit; frames larger than this are rejected before parsing.
	MaxFrameSize = 8192

	udevMagic      = 0xfeedcafe
	udevHeaderSize = 40
	udevPrefix     = "libudev"
)

// Kind distinguishes the two framings that coexist on the uevent netlink
// socket.
type Kind int

const (
	// KindKernel is a bare "ACTION@DEVPATH\0KEY=VALUE\0..." frame.
	KindKernel Kind = iota
	// KindUdev is a "libudev"-prefixed frame with a 40-byte binary header.
	KindUdev
)

// UdevMonHeader is the 40-byte binary header libudev prepends to frames it
// relays, laid out exactly as the kernel/udev wire format: an 8-byte
// "libudev" prefix, four big-endian uint32 framing fields, and four
// big-endian filter hashes.
type UdevMonHeader struct {
	Prefix            [8]byte
	Magic             uint32
	HeaderSize        uint32
	PropertiesOff     uint32
	PropertiesLen     uint32
	SubsystemHash     uint32
	DevtypeHash       uint32
	TagBloomHi        uint32
	TagBloomLo        uint32
}

// UeventFrame owns the raw bytes of one received or constructed uevent
// message. It is immutable once built; RewriteRange and the helpers built on
// it (RewriteProperty, RewriteOccurrenceInProperty) produce a new frame rather
// than mutating raw in place, so a View's byte offsets remain valid for the
// frame they were parsed from.
type UeventFrame struct {
	raw  []byte
	kind Kind
}

// NewKernelFrame wraps raw bytes known to be a kernel-framed uevent.
func NewKernelFrame(raw []byte) *UeventFrame {
	return &UeventFrame{raw: raw, kind: KindKernel}
}

// NewUdevFrame wraps raw bytes known to be a udev-framed uevent.
func NewUdevFrame(raw []byte) *UeventFrame {
	return &UeventFrame{raw: raw, kind: KindUdev}
}

// Raw returns the frame's underlying bytes. Callers must not mutate the
// returned slice.
func (f *UeventFrame) Raw() []byte {
	return f.raw
}

// Kind reports which framing this frame uses.
func (f *UeventFrame) Kind() Kind {
	return f.kind
}

// Len returns the frame's byte length.
func (f *UeventFrame) Len() int {
	return len(f.raw)
}

// Header decodes the udev binary header. ok is false for kernel frames or
// a buffer shorter than the header.
func (f *UeventFrame) Header() (hdr UdevMonHeader, ok bool) {
	if f.kind != KindUdev || len(f.raw) < udevHeaderSize {
		return UdevMonHeader{}, false
	}
	copy(hdr.Prefix[:], f.raw[0:8])
	hdr.Magic = binary.BigEndian.Uint32(f.raw[8:12])
	hdr.HeaderSize = binary.BigEndian.Uint32(f.raw[12:16])
	hdr.PropertiesOff = binary.BigEndian.Uint32(f.raw[16:20])
	hdr.PropertiesLen = binary.BigEndian.Uint32(f.raw[20:24])
	hdr.SubsystemHash = binary.BigEndian.Uint32(f.raw[24:28])
	hdr.DevtypeHash = binary.BigEndian.Uint32(f.raw[28:32])
	hdr.TagBloomHi = binary.BigEndian.Uint32(f.raw[32:36])
	hdr.TagBloomLo = binary.BigEndian.Uint32(f.raw[36:40])
	return hdr, true
}

// validUdevHeader reports whether the frame carries a well-formed udev
// header: correct magic and a properties_off that leaves at least 32
// bytes of room within msg_len.
func (f *UeventFrame) validUdevHeader() bool {
	hdr, ok := f.Header()
	if !ok {
		return false
	}
	if hdr.Magic != udevMagic {
		return false
	}
	return int(hdr.PropertiesOff)+32 <= len(f.raw)
}

// propertiesStart returns the byte offset where KEY=VALUE entries begin.
func (f *UeventFrame) propertiesStart() int {
	if f.kind == KindUdev {
		hdr, _ := f.Header()
		return int(hdr.PropertiesOff)
	}
	return 0
}
