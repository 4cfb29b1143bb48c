package handle

import (
	"fmt"

	"github.com/wippyai/nativehandle/errors"
)

const (
	// HeaderSize is the byte size of the fixed header (version, numFds,
	// numInts). A live handle always reports it as its version.
	HeaderSize = 12

	// MaxFds and MaxInts bound the shape of a single handle.
	MaxFds  = 1024
	MaxInts = 1024

	// InvalidFD marks an empty or closed descriptor slot.
	InvalidFD = -1
)

// Shape is the (numFds, numInts) pair that sizes a handle.
type Shape struct {
	NumFds  int
	NumInts int
}

// IsZero reports whether the shape carries no slots at all.
func (s Shape) IsZero() bool {
	return s.NumFds == 0 && s.NumInts == 0
}

// Len returns the number of trailing slots.
func (s Shape) Len() int {
	return s.NumFds + s.NumInts
}

func (s Shape) String() string {
	return fmt.Sprintf("%d fds/%d ints", s.NumFds, s.NumInts)
}

// Handle is a bundle of file descriptors followed by opaque integers.
//
// The first NumFds slots are descriptors owned (or referenced) by the handle;
// the remaining NumInts slots carry no ownership. The zero Handle has no
// storage and is only useful as the target of Probe.
//
// A Handle is not safe for concurrent mutation.
type Handle struct {
	data    []int32
	version int32
	numFds  int32
	numInts int32
}

func newHandle(numFds, numInts int) *Handle {
	h := &Handle{}
	h.reshape(numFds, numInts)
	return h
}

// reshape replaces the storage with fresh slots of the given shape.
// Descriptor slots start out as InvalidFD so that uninitialised storage
// never looks like descriptor 0.
func (h *Handle) reshape(numFds, numInts int) {
	h.version = HeaderSize
	h.numFds = int32(numFds)
	h.numInts = int32(numInts)
	h.data = make([]int32, numFds+numInts)
	for i := 0; i < numFds; i++ {
		h.data[i] = InvalidFD
	}
}

// check is the structural sanity check shared by every operation.
func (h *Handle) check(phase errors.Phase) error {
	if h.version != HeaderSize {
		return errors.New(phase, errors.KindInvalidArgument).
			Value(h.version).
			Detail("version %d does not match header size %d", h.version, HeaderSize).
			Build()
	}
	if h.numFds < 0 || h.numInts < 0 {
		return errors.InvalidArgument(phase, "negative shape %d fds/%d ints", h.numFds, h.numInts)
	}
	if len(h.data) != int(h.numFds)+int(h.numInts) {
		return errors.InvalidArgument(phase, "payload holds %d slots, header declares %d", len(h.data), h.numFds+h.numInts)
	}
	return nil
}

// Version returns the header size recorded in the handle.
func (h *Handle) Version() int {
	return int(h.version)
}

// NumFds returns the number of descriptor slots.
func (h *Handle) NumFds() int {
	return int(h.numFds)
}

// NumInts returns the number of integer slots.
func (h *Handle) NumInts() int {
	return int(h.numInts)
}

// Shape returns the handle's shape. A nil handle has the zero shape.
func (h *Handle) Shape() Shape {
	if h == nil {
		return Shape{}
	}
	return Shape{NumFds: int(h.numFds), NumInts: int(h.numInts)}
}

// ShapeOf returns the shape of h, the query half of the probe protocol.
func ShapeOf(h *Handle) Shape {
	return h.Shape()
}

// Fd returns the descriptor stored in slot i.
func (h *Handle) Fd(i int) (int, bool) {
	if i < 0 || i >= int(h.numFds) || i >= len(h.data) {
		return InvalidFD, false
	}
	return int(h.data[i]), true
}

// SetFd stores fd in descriptor slot i. The handle takes over closing fd;
// any descriptor previously held by the slot is not closed.
func (h *Handle) SetFd(i, fd int) error {
	if i < 0 || i >= int(h.numFds) || i >= len(h.data) {
		return errors.New(errors.PhaseCreate, errors.KindInvalidArgument).
			Path(fmt.Sprintf("fd[%d]", i)).
			Detail("descriptor slot out of range (%d fds)", h.numFds).
			Build()
	}
	if fd < 0 {
		fd = InvalidFD
	}
	h.data[i] = int32(fd)
	return nil
}

// Int returns the integer stored in payload slot i.
func (h *Handle) Int(i int) (int32, bool) {
	idx := int(h.numFds) + i
	if i < 0 || i >= int(h.numInts) || idx >= len(h.data) {
		return 0, false
	}
	return h.data[idx], true
}

// SetInt stores v in payload slot i.
func (h *Handle) SetInt(i int, v int32) error {
	idx := int(h.numFds) + i
	if i < 0 || i >= int(h.numInts) || idx >= len(h.data) {
		return errors.New(errors.PhaseCreate, errors.KindInvalidArgument).
			Path(fmt.Sprintf("int[%d]", i)).
			Detail("integer slot out of range (%d ints)", h.numInts).
			Build()
	}
	h.data[idx] = v
	return nil
}

// Fds returns a copy of the descriptor slots.
func (h *Handle) Fds() []int {
	n := min(int(h.numFds), len(h.data))
	fds := make([]int, n)
	for i := range fds {
		fds[i] = int(h.data[i])
	}
	return fds
}

// Ints returns a copy of the integer payload.
func (h *Handle) Ints() []int32 {
	start := min(int(h.numFds), len(h.data))
	return append([]int32(nil), h.data[start:]...)
}

// LiveFds counts descriptor slots that are not InvalidFD.
func (h *Handle) LiveFds() int {
	n := 0
	for _, fd := range h.Fds() {
		if fd >= 0 {
			n++
		}
	}
	return n
}

func (h *Handle) String() string {
	if h == nil {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle{v%d fds:%v ints:%v}", h.version, h.Fds(), h.Ints())
}
