package handle

import (
	"errors"
	"syscall"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	nherrors "github.com/wippyai/nativehandle/errors"
)

// fakeSyscalls hands out fake descriptor numbers and records every call.
type fakeSyscalls struct {
	open     map[int]bool
	closes   map[int]int
	failDup  map[int]error // call index -> error
	failFd   map[int]error // fd -> close error
	next     int
	dupCalls int
}

func newFakeSyscalls(fds ...int) *fakeSyscalls {
	f := &fakeSyscalls{
		open:    make(map[int]bool),
		closes:  make(map[int]int),
		failDup: make(map[int]error),
		failFd:  make(map[int]error),
		next:    1000,
	}
	for _, fd := range fds {
		f.open[fd] = true
	}
	return f
}

func (f *fakeSyscalls) Dup(fd int) (int, error) {
	call := f.dupCalls
	f.dupCalls++
	if err, ok := f.failDup[call]; ok {
		return InvalidFD, err
	}
	if !f.open[fd] {
		return InvalidFD, syscall.EBADF
	}
	nfd := f.next
	f.next++
	f.open[nfd] = true
	return nfd, nil
}

func (f *fakeSyscalls) Close(fd int) error {
	f.closes[fd]++
	if err, ok := f.failFd[fd]; ok {
		delete(f.open, fd)
		return err
	}
	if !f.open[fd] {
		return syscall.EBADF
	}
	delete(f.open, fd)
	return nil
}

func (f *fakeSyscalls) liveAmong(fds []int) int {
	n := 0
	for _, fd := range fds {
		if fd >= 0 && f.open[fd] {
			n++
		}
	}
	return n
}

func sourceHandle(t *testing.T, fds []int, ints []int32) *Handle {
	t.Helper()
	h, err := Create(len(fds), len(ints))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i, fd := range fds {
		if err := h.SetFd(i, fd); err != nil {
			t.Fatalf("SetFd failed: %v", err)
		}
	}
	for i, v := range ints {
		if err := h.SetInt(i, v); err != nil {
			t.Fatalf("SetInt failed: %v", err)
		}
	}
	return h
}

func TestManager_Probe(t *testing.T) {
	sys := newFakeSyscalls(3, 4)
	m := NewManager(WithSyscalls(sys))
	src := sourceHandle(t, []int{3, 4}, []int32{1, 2, 3})

	var dst Handle
	if err := m.Dup(&dst, src); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if dst.Shape() != src.Shape() {
		t.Fatalf("probe shape = %s, want %s", dst.Shape(), src.Shape())
	}
	if sys.dupCalls != 0 {
		t.Fatalf("probe performed %d dups", sys.dupCalls)
	}
	if dst.LiveFds() != 0 {
		t.Fatalf("probe left %d live fds", dst.LiveFds())
	}
	if dst.Version() != HeaderSize {
		t.Fatalf("probe version = %d", dst.Version())
	}

	// The probed handle is ready for the real copy.
	if err := m.Dup(&dst, src); err != nil {
		t.Fatalf("dup after probe failed: %v", err)
	}
	if sys.dupCalls != 2 {
		t.Fatalf("dupCalls = %d, want 2", sys.dupCalls)
	}
}

func TestManager_ProbeRequiresZeroShape(t *testing.T) {
	m := NewManager(WithSyscalls(newFakeSyscalls()))
	src := sourceHandle(t, []int{InvalidFD}, nil)
	dst, _ := m.Create(0, 1)

	if err := m.Probe(dst, src); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("probe into sized handle: got %v", err)
	}
}

func TestManager_DuplicateInto(t *testing.T) {
	sys := newFakeSyscalls(3, 4)
	m := NewManager(WithSyscalls(sys))
	src := sourceHandle(t, []int{3, InvalidFD, 4}, []int32{10, -20})

	dst, _ := m.Create(3, 2)
	if err := m.DuplicateInto(dst, src); err != nil {
		t.Fatalf("DuplicateInto failed: %v", err)
	}

	fds := dst.Fds()
	if fds[1] != InvalidFD {
		t.Fatalf("sentinel slot was duplicated: %v", fds)
	}
	if fds[0] == 3 || fds[2] == 4 || fds[0] < 0 || fds[2] < 0 {
		t.Fatalf("descriptors not duplicated: %v", fds)
	}
	if sys.dupCalls != 2 {
		t.Fatalf("dupCalls = %d, want 2", sys.dupCalls)
	}
	if ints := dst.Ints(); ints[0] != 10 || ints[1] != -20 {
		t.Fatalf("Ints() = %v", ints)
	}
	if got := src.Fds(); got[0] != 3 || got[2] != 4 {
		t.Fatalf("src modified: %v", got)
	}
}

func TestManager_ShapeMismatch(t *testing.T) {
	sys := newFakeSyscalls(3)
	m := NewManager(WithSyscalls(sys))
	src := sourceHandle(t, []int{3}, []int32{5})
	dst := sourceHandle(t, []int{InvalidFD, InvalidFD}, []int32{9})

	err := m.Dup(dst, src)
	if !errors.Is(err, &nherrors.Error{Phase: nherrors.PhaseDup, Kind: nherrors.KindInvalidArgument}) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if dst.NumFds() != 2 || dst.Ints()[0] != 9 {
		t.Fatalf("dst mutated: %v", dst)
	}
	if src.NumFds() != 1 || src.Fds()[0] != 3 {
		t.Fatalf("src mutated: %v", src)
	}
	if sys.dupCalls != 0 {
		t.Fatalf("dupCalls = %d, want 0", sys.dupCalls)
	}
}

func TestManager_DupIntoSelf(t *testing.T) {
	m := NewManager(WithSyscalls(newFakeSyscalls(3)))
	h := sourceHandle(t, []int{3}, nil)
	if err := m.DuplicateInto(h, h); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("self dup: got %v", err)
	}
}

func TestManager_DupNil(t *testing.T) {
	m := NewManager(WithSyscalls(newFakeSyscalls()))
	h, _ := m.Create(0, 0)
	if err := m.Dup(nil, h); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("nil dst: got %v", err)
	}
	if err := m.Dup(h, nil); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("nil src: got %v", err)
	}
}

func TestManager_Rollback(t *testing.T) {
	for k := 0; k < 4; k++ {
		sys := newFakeSyscalls(10, 11, 12, 13)
		sys.failDup[k] = syscall.EMFILE
		m := NewManager(WithSyscalls(sys))

		src := sourceHandle(t, []int{10, 11, 12, 13}, []int32{7})
		dst, _ := m.Create(4, 1)

		err := m.DuplicateInto(dst, src)
		if err == nil {
			t.Fatalf("k=%d: expected failure", k)
		}
		if !nherrors.IsKind(err, nherrors.KindResourceExhausted) {
			t.Fatalf("k=%d: kind = %v", k, nherrors.KindOf(err))
		}
		if !errors.Is(err, syscall.EMFILE) {
			t.Fatalf("k=%d: cause lost: %v", k, err)
		}
		if dst.LiveFds() != 0 {
			t.Fatalf("k=%d: dst holds %d live fds", k, dst.LiveFds())
		}
		if dst.Ints()[0] != 0 {
			t.Fatalf("k=%d: dst ints written on failure", k)
		}
		// Every duplicate made before the failure was closed exactly once.
		for fd := 1000; fd < 1000+k; fd++ {
			if sys.closes[fd] != 1 {
				t.Fatalf("k=%d: duplicate %d closed %d times", k, fd, sys.closes[fd])
			}
		}
		if len(sys.open) != 4 || sys.liveAmong(src.Fds()) != 4 {
			t.Fatalf("k=%d: open set = %v", k, sys.open)
		}
	}
}

func TestManager_RollbackLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sys := newFakeSyscalls(3, 4)
	sys.failDup[1] = syscall.EBADF
	m := NewManager(WithSyscalls(sys), WithLogger(zap.New(core)))

	src := sourceHandle(t, []int{3, 4}, nil)
	dst, _ := m.Create(2, 0)
	err := m.DuplicateInto(dst, src)
	if !nherrors.IsKind(err, nherrors.KindOS) {
		t.Fatalf("expected os error, got %v", err)
	}
	if logs.FilterMessage("duplicate descriptor failed, rolling back").Len() != 1 {
		t.Fatalf("rollback not logged: %v", logs.All())
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	sys := newFakeSyscalls(3, 4)
	m := NewManager(WithSyscalls(sys))
	h := sourceHandle(t, []int{3, 4}, []int32{3})

	if err := m.Close(h); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := m.Close(h); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if sys.closes[3] != 1 || sys.closes[4] != 1 {
		t.Fatalf("closes = %v", sys.closes)
	}
	if h.LiveFds() != 0 {
		t.Fatalf("slots not marked closed: %v", h.Fds())
	}
	// The integer 3 is not a descriptor.
	if h.Ints()[0] != 3 {
		t.Fatalf("integer payload touched: %v", h.Ints())
	}
}

func TestManager_CloseAggregates(t *testing.T) {
	sys := newFakeSyscalls(3, 4, 5)
	sys.failFd[3] = syscall.EIO
	sys.failFd[5] = syscall.EINTR
	m := NewManager(WithSyscalls(sys))
	h := sourceHandle(t, []int{3, 4, 5}, nil)

	err := m.Close(h)
	if err == nil {
		t.Fatal("expected close failure")
	}
	if !errors.Is(err, &nherrors.Error{Phase: nherrors.PhaseClose, Kind: nherrors.KindOS}) {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, syscall.EIO) || !errors.Is(err, syscall.EINTR) {
		t.Fatalf("failures not aggregated: %v", err)
	}
	if sys.closes[4] != 1 {
		t.Fatal("failure stopped the loop")
	}
	if h.LiveFds() != 0 {
		t.Fatalf("slots left open: %v", h.Fds())
	}
	if err := m.Close(h); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if sys.closes[3] != 1 || sys.closes[5] != 1 {
		t.Fatalf("failed slots retried: %v", sys.closes)
	}
}

func TestManager_Copy(t *testing.T) {
	sys := newFakeSyscalls(3, 4)
	m := NewManager(WithSyscalls(sys))
	src := sourceHandle(t, []int{3, 4}, []int32{1, 2})

	c, err := m.Copy(src)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if c == src || c.Shape() != src.Shape() {
		t.Fatalf("bad copy: %v", c)
	}
	if c.LiveFds() != 2 || sys.liveAmong(c.Fds()) != 2 {
		t.Fatalf("copy descriptors not live: %v", c.Fds())
	}

	if got, err := m.Copy(nil); got != nil || err != nil {
		t.Fatalf("Copy(nil) = %v, %v", got, err)
	}
}

func TestManager_CopyFailure(t *testing.T) {
	sys := newFakeSyscalls(3, 4, 5)
	sys.failDup[2] = syscall.ENFILE
	m := NewManager(WithSyscalls(sys))
	src := sourceHandle(t, []int{3, 4, 5}, nil)

	c, err := m.Copy(src)
	if c != nil {
		t.Fatalf("Copy returned partial handle %v", c)
	}
	if !errors.Is(err, &nherrors.Error{Phase: nherrors.PhaseCopy, Kind: nherrors.KindResourceExhausted}) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sys.open) != 3 {
		t.Fatalf("leaked descriptors: %v", sys.open)
	}
}

func TestManager_DeleteKeepsDescriptors(t *testing.T) {
	sys := newFakeSyscalls(3)
	m := NewManager(WithSyscalls(sys))
	h := sourceHandle(t, []int{3}, nil)

	if err := m.Delete(h); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(sys.closes) != 0 || !sys.open[3] {
		t.Fatal("Delete closed a descriptor")
	}
	if err := m.Close(h); !nherrors.IsKind(err, nherrors.KindInvalidArgument) {
		t.Fatalf("Close after Delete: got %v", err)
	}
}
