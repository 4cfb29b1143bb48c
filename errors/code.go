package errors

import (
	stderrors "errors"
	"syscall"
)

// Code maps err to the negative status convention used at integer-only
// boundaries such as guest calls: 0 on success, -errno otherwise.
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) && errno != 0 {
		return -int32(errno)
	}

	switch {
	case IsKind(err, KindInvalidArgument):
		return -int32(syscall.EINVAL)
	case IsKind(err, KindAllocation):
		return -int32(syscall.ENOMEM)
	case IsKind(err, KindNotFound):
		return -int32(syscall.ENOENT)
	case IsKind(err, KindResourceExhausted):
		return -int32(syscall.EMFILE)
	}
	return -int32(syscall.EIO)
}
