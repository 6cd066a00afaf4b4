package uevent

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Errors returned by Parse/Rewrite. Callers treat all of these as a
// malformed frame: log a warning and drop the event.
var (
	ErrOversize       = errors.New("uevent: frame exceeds buffer capacity")
	ErrBadMagic       = errors.New("uevent: udev header magic mismatch")
	ErrTruncatedFrame = errors.New("uevent: frame has no recognizable header token")
	ErrNoSuchProperty = errors.New("uevent: property not present in frame")
)

// Parse scans frame from its header token (kernel: "ACTION@DEVPATH\0";
// udev: the decoded properties_off) through NUL-terminated "KEY=VALUE"
// entries, recording recognized fields into a UeventView. It is
// deterministic and pure: parsing the same frame bytes twice yields equal
// views.
func Parse(f *UeventFrame) (*UeventView, error) {
	if f.Len() > MaxFrameSize {
		return nil, ErrOversize
	}

	start, err := headerEnd(f)
	if err != nil {
		return nil, err
	}

	view := &UeventView{Major: -1, Minor: -1, spans: make(map[string]propertySpan)}
	pos := start
	for pos < len(f.raw) {
		end := bytes.IndexByte(f.raw[pos:], 0)
		if end <= 0 {
			break
		}
		token := f.raw[pos : pos+end]
		eq := bytes.IndexByte(token, '=')
		if eq > 0 {
			key := string(token[:eq])
			valStart := pos + eq + 1
			valEnd := pos + end
			assignField(view, key, string(f.raw[valStart:valEnd]))
			view.spans[key] = propertySpan{keyLen: eq + 1, valueStart: valStart, valueEnd: valEnd}
		}
		pos += end + 1
	}
	return view, nil
}

// headerEnd locates where the property list begins, validating the frame's
// header in the process. For kernel frames this is just past the first NUL
// after the "ACTION@DEVPATH" token; for udev frames it is properties_off,
// after checking the magic and header bounds.
func headerEnd(f *UeventFrame) (int, error) {
	switch f.kind {
	case KindUdev:
		if !f.validUdevHeader() {
			return 0, ErrBadMagic
		}
		hdr, _ := f.Header()
		return int(hdr.PropertiesOff), nil
	default:
		idx := bytes.IndexByte(f.raw, 0)
		if idx <= 0 {
			return 0, ErrTruncatedFrame
		}
		if !bytes.ContainsRune(f.raw[:idx], '@') {
			return 0, ErrTruncatedFrame
		}
		return idx + 1, nil
	}
}

// assignField maps one KEY to the corresponding UeventView field.
func assignField(v *UeventView, key, value string) {
	switch key {
	case "ACTION":
		v.Action = value
	case "DEVPATH":
		v.Devpath = value
	case "SUBSYSTEM":
		v.Subsystem = value
	case "MAJOR":
		if n, err := strconv.Atoi(value); err == nil {
			v.Major = n
		}
	case "MINOR":
		if n, err := strconv.Atoi(value); err == nil {
			v.Minor = n
		}
	case "DEVNAME":
		v.Devname = value
	case "DEVTYPE":
		v.Devtype = value
	case "DRIVER":
		v.Driver = value
	case "PRODUCT":
		v.Product = value
	case "ID_VENDOR_ID":
		if n, err := strconv.ParseUint(value, 16, 16); err == nil {
			v.IDVendorID = uint16(n)
		}
	case "ID_MODEL_ID":
		if n, err := strconv.ParseUint(value, 16, 16); err == nil {
			v.IDModelID = uint16(n)
		}
	case "ID_SERIAL_SHORT":
		v.IDSerialShort = value
	case "INTERFACE":
		v.Interface = value
	case "SYNTH_UUID":
		v.SynthUUID = value
	}
}

// parseProduct parses the kernel's PRODUCT=vvvv/pppp/xxxx fallback format,
// accepting case-insensitive hex with leading zeros.
func parseProduct(product string) (vendor, id uint16, ok bool) {
	parts := strings.Split(product, "/")
	if len(parts) < 2 {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	p, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return uint16(v), uint16(p), true
}

// RewriteRange replaces oldLen bytes starting at the absolute offset start
// in frame's raw bytes with newBytes, producing a new frame. For udev
// frames, properties_len is adjusted by the signed length delta; every
// other header field is preserved byte-for-byte. Callers
// must re-parse the returned frame before reading it.
func RewriteRange(f *UeventFrame, start, oldLen int, newBytes []byte) (*UeventFrame, error) {
	if start < 0 || oldLen < 0 || start+oldLen > len(f.raw) {
		return nil, fmt.Errorf("uevent: rewrite range [%d,%d) out of bounds for frame of length %d", start, start+oldLen, len(f.raw))
	}

	delta := len(newBytes) - oldLen
	newLen := len(f.raw) + delta
	if newLen > MaxFrameSize {
		return nil, ErrOversize
	}

	newRaw := make([]byte, newLen)
	copy(newRaw, f.raw[:start])
	copy(newRaw[start:], newBytes)
	copy(newRaw[start+len(newBytes):], f.raw[start+oldLen:])

	if f.kind == KindUdev {
		updatePropertiesLen(newRaw, delta)
	}

	return &UeventFrame{raw: newRaw, kind: f.kind}, nil
}

// RewriteProperty replaces the whole value of a previously parsed property
// with newValue.
func RewriteProperty(f *UeventFrame, v *UeventView, key, newValue string) (*UeventFrame, error) {
	span, ok := v.spans[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProperty, key)
	}
	return RewriteRange(f, span.valueStart, span.valueEnd-span.valueStart, []byte(newValue))
}

// RewriteOccurrenceInProperty replaces the first occurrence of old within
// a property's current value with new, leaving the rest of the value
// untouched. Used by the NIC mover to substitute the old interface name
// embedded inside DEVPATH without touching the rest of the path.
func RewriteOccurrenceInProperty(f *UeventFrame, v *UeventView, key, old, newSub string) (*UeventFrame, error) {
	span, ok := v.spans[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProperty, key)
	}
	value := f.raw[span.valueStart:span.valueEnd]
	idx := bytes.Index(value, []byte(old))
	if idx < 0 {
		return nil, fmt.Errorf("uevent: %s=%q does not contain %q", key, value, old)
	}
	return RewriteRange(f, span.valueStart+idx, len(old), []byte(newSub))
}

// updatePropertiesLen adjusts the big-endian properties_len field in a
// udev header by delta.
func updatePropertiesLen(raw []byte, delta int) {
	if len(raw) < 24 {
		return
	}
	cur := binary.BigEndian.Uint32(raw[20:24])
	binary.BigEndian.PutUint32(raw[20:24], uint32(int64(cur)+int64(delta)))
}

// Trace logs each NUL-terminated property token in a frame at debug level,
// the Go equivalent of the source's compile-time TRACE() macro in
// uevent_trace — expressed as ordinary guarded logging instead.
func Trace(f *UeventFrame, logger *slog.Logger) {
	start, err := headerEnd(f)
	if err != nil {
		logger.Debug("uevent trace: unparseable header", "error", err)
		return
	}
	pos := start
	i := 0
	for pos < len(f.raw) {
		end := bytes.IndexByte(f.raw[pos:], 0)
		if end <= 0 {
			break
		}
		logger.Debug("uevent property", "index", i, "raw", string(f.raw[pos:pos+end]))
		pos += end + 1
		i++
	}
}
