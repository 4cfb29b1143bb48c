//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package handle

import (
	"golang.org/x/sys/unix"
)

type osSyscalls struct{}

// Dup uses F_DUPFD_CLOEXEC so duplicates never leak into exec'd children.
func (osSyscalls) Dup(fd int) (int, error) {
	for {
		nfd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		if err == unix.EINTR {
			continue
		}
		return nfd, err
	}
}

// Close is not retried on EINTR: the descriptor is already released by then.
func (osSyscalls) Close(fd int) error {
	return unix.Close(fd)
}
