package handle

// Syscalls duplicates and closes OS descriptors on behalf of a Manager.
type Syscalls interface {
	// Dup returns a new descriptor referring to the same open file as fd,
	// with an independent close lifetime.
	Dup(fd int) (int, error)

	// Close releases fd.
	Close(fd int) error
}

// DefaultSyscalls returns the platform implementation.
func DefaultSyscalls() Syscalls {
	return osSyscalls{}
}
