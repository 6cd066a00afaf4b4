package uevent

// propertySpan locates one KEY=VALUE property within a frame's raw bytes,
// recording enough to let RewriteProperty splice a replacement value in without
// re-scanning the whole frame.
type propertySpan struct {
	keyLen     int // len("KEY=")
	valueStart int
	valueEnd   int // exclusive, points at the terminating NUL
}

// UeventView is a derived, non-owning view over a parsed UeventFrame: plain
// Go strings copied out of the frame at parse time (not sub-slices of the
// frame's backing array), together with the property spans the rewrite
// functions need to locate the original bytes. A view is only meaningful
// for the frame it was parsed from; a frame produced by rewriting needs
// its own Parse.
type UeventView struct {
	Action        string
	Subsystem     string
	Devpath       string
	Devname       string
	Devtype       string
	Driver        string
	Product       string
	IDSerialShort string
	Interface     string
	SynthUUID     string

	Major int // -1 if absent
	Minor int // -1 if absent

	IDVendorID uint16 // 0 if absent
	IDModelID  uint16 // 0 if absent

	spans map[string]propertySpan
}

// vendorProductFallback returns (vendor, product) from a secondary parse of
// PRODUCT=vvvv/pppp/xxxx, used by VendorID and ModelID when
// ID_VENDOR_ID/ID_MODEL_ID are absent.
func (v *UeventView) vendorProductFallback() (vendor, product uint16, ok bool) {
	return parseProduct(v.Product)
}

// VendorID returns ID_VENDOR_ID if present, else the vendor field parsed
// out of PRODUCT.
func (v *UeventView) VendorID() uint16 {
	if v.IDVendorID != 0 {
		return v.IDVendorID
	}
	vendor, _, ok := v.vendorProductFallback()
	if ok {
		return vendor
	}
	return 0
}

// ModelID returns ID_MODEL_ID if present, else the product field parsed
// out of PRODUCT.
func (v *UeventView) ModelID() uint16 {
	if v.IDModelID != 0 {
		return v.IDModelID
	}
	_, product, ok := v.vendorProductFallback()
	if ok {
		return product
	}
	return 0
}
