//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package handle

import (
	stderrors "errors"
)

type osSyscalls struct{}

func (osSyscalls) Dup(int) (int, error) {
	return InvalidFD, stderrors.ErrUnsupported
}

func (osSyscalls) Close(int) error {
	return stderrors.ErrUnsupported
}
