package handle

var std = NewManager()

// Create allocates a handle using the default manager.
func Create(numFds, numInts int) (*Handle, error) {
	return std.Create(numFds, numInts)
}

// Delete releases h's storage without closing its descriptors.
func Delete(h *Handle) error {
	return std.Delete(h)
}

// Close closes h's descriptors without releasing its storage.
func Close(h *Handle) error {
	return std.Close(h)
}

// Probe copies src's shape into the zero-shaped dst.
func Probe(dst, src *Handle) error {
	return std.Probe(dst, src)
}

// DuplicateInto duplicates src into the equally shaped dst.
func DuplicateInto(dst, src *Handle) error {
	return std.DuplicateInto(dst, src)
}

// Dup probes a zero-shaped dst or duplicates into a sized one.
func Dup(dst, src *Handle) error {
	return std.Dup(dst, src)
}

// Copy returns a deep copy of src.
func Copy(src *Handle) (*Handle, error) {
	return std.Copy(src)
}
