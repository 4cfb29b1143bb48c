package handle

import (
	"encoding/binary"

	"github.com/wippyai/nativehandle/errors"
)

// slotSize is the width of every header field and trailing slot.
const slotSize = 4

// LayoutSize returns the number of bytes MarshalBinary produces for h.
func (h *Handle) LayoutSize() int {
	return HeaderSize + len(h.data)*slotSize
}

// AppendBinary appends the flat layout of h to b: version, numFds, numInts,
// then every slot, each a host-order int32. Descriptor values are written
// as-is; they mean nothing outside this process's descriptor table.
func (h *Handle) AppendBinary(b []byte) ([]byte, error) {
	if err := h.check(errors.PhaseEncode); err != nil {
		return b, err
	}
	b = binary.NativeEndian.AppendUint32(b, uint32(h.version))
	b = binary.NativeEndian.AppendUint32(b, uint32(h.numFds))
	b = binary.NativeEndian.AppendUint32(b, uint32(h.numInts))
	for _, v := range h.data {
		b = binary.NativeEndian.AppendUint32(b, uint32(v))
	}
	return b, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *Handle) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, h.LayoutSize()))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It replaces h's
// contents without closing any descriptors h previously held.
func (h *Handle) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return errors.InvalidArgument(errors.PhaseDecode, "layout is %d bytes, header needs %d", len(b), HeaderSize)
	}

	version := int32(binary.NativeEndian.Uint32(b[0:]))
	numFds := int32(binary.NativeEndian.Uint32(b[4:]))
	numInts := int32(binary.NativeEndian.Uint32(b[8:]))

	if version != HeaderSize {
		return errors.New(errors.PhaseDecode, errors.KindInvalidArgument).
			Value(version).
			Detail("version %d does not match header size %d", version, HeaderSize).
			Build()
	}
	if numFds < 0 || numInts < 0 || numFds > MaxFds || numInts > MaxInts {
		return errors.InvalidArgument(errors.PhaseDecode, "shape %d fds/%d ints out of range", numFds, numInts)
	}
	n := int(numFds) + int(numInts)
	if want := HeaderSize + n*slotSize; len(b) != want {
		return errors.InvalidArgument(errors.PhaseDecode, "layout is %d bytes, shape needs %d", len(b), want)
	}

	data := make([]int32, n)
	for i := range data {
		data[i] = int32(binary.NativeEndian.Uint32(b[HeaderSize+i*slotSize:]))
	}

	h.version = version
	h.numFds = numFds
	h.numInts = numInts
	h.data = data
	return nil
}

// Decode parses a flat layout into a new handle.
func Decode(b []byte) (*Handle, error) {
	h := &Handle{}
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return h, nil
}
