package handle

import (
	"encoding/binary"
	"testing"

	nherrors "github.com/wippyai/nativehandle/errors"
)

func TestLayout_RoundTrip(t *testing.T) {
	h := sourceHandle(t, []int{5, InvalidFD}, []int32{1, -2, 3})

	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(b) != h.LayoutSize() || len(b) != HeaderSize+5*4 {
		t.Fatalf("layout is %d bytes", len(b))
	}
	if v := binary.NativeEndian.Uint32(b); v != HeaderSize {
		t.Fatalf("version field = %d", v)
	}

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.String() != h.String() {
		t.Fatalf("decoded %v, want %v", got, h)
	}
}

func TestLayout_AppendBinary(t *testing.T) {
	h := sourceHandle(t, nil, []int32{7})
	prefix := []byte{0xAA}

	b, err := h.AppendBinary(prefix)
	if err != nil {
		t.Fatalf("AppendBinary failed: %v", err)
	}
	if b[0] != 0xAA || len(b) != 1+h.LayoutSize() {
		t.Fatalf("AppendBinary clobbered prefix or size: %x", b)
	}
}

func TestLayout_EncodeDeleted(t *testing.T) {
	h, _ := Create(1, 0)
	_ = Delete(h)
	if _, err := h.MarshalBinary(); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("encoding deleted handle: got %v", err)
	}
}

func header(version, numFds, numInts int32) []byte {
	var b []byte
	b = binary.NativeEndian.AppendUint32(b, uint32(version))
	b = binary.NativeEndian.AppendUint32(b, uint32(numFds))
	b = binary.NativeEndian.AppendUint32(b, uint32(numInts))
	return b
}

func TestLayout_DecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{12, 0, 0}},
		{"wrong version", append(header(16, 0, 1), 0, 0, 0, 0)},
		{"negative fds", header(HeaderSize, -1, 0)},
		{"too many ints", header(HeaderSize, 0, MaxInts+1)},
		{"truncated payload", append(header(HeaderSize, 1, 1), 0, 0, 0, 0)},
		{"trailing bytes", append(header(HeaderSize, 0, 0), 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Decode(tt.data)
			if h != nil {
				t.Fatalf("Decode returned %v", h)
			}
			if !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
				t.Fatalf("got %v", err)
			}
		})
	}
}
