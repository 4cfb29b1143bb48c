package handle

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/nativehandle/errors"
)

// Manager runs the handle lifecycle operations against a descriptor
// provider. The zero value is not usable; build one with NewManager.
type Manager struct {
	sys    Syscalls
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSyscalls replaces the descriptor provider.
func WithSyscalls(s Syscalls) Option {
	return func(m *Manager) {
		if s != nil {
			m.sys = s
		}
	}
}

// WithLogger sets a logger for this manager instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager using the platform syscalls unless overridden.
func NewManager(opts ...Option) *Manager {
	m := &Manager{sys: DefaultSyscalls()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) log() *zap.Logger {
	if m.logger != nil {
		return m.logger
	}
	return Logger()
}

// Create allocates a handle with numFds descriptor slots and numInts integer
// slots. Descriptor slots start as InvalidFD; the caller fills them in.
func (m *Manager) Create(numFds, numInts int) (*Handle, error) {
	if numFds < 0 || numInts < 0 {
		return nil, errors.InvalidArgument(errors.PhaseCreate, "negative shape %d fds/%d ints", numFds, numInts)
	}
	if numFds > MaxFds || numInts > MaxInts {
		return nil, errors.AllocationFailed(errors.PhaseCreate, numFds, numInts)
	}
	return newHandle(numFds, numInts), nil
}

// Delete releases the handle's storage. It never closes descriptors; call
// Close first if the handle owns them. Deleting nil is a no-op.
func (m *Manager) Delete(h *Handle) error {
	if h == nil {
		return nil
	}
	if err := h.check(errors.PhaseDelete); err != nil {
		return err
	}
	h.data = nil
	h.version = 0
	h.numFds = 0
	h.numInts = 0
	return nil
}

// Close closes every live descriptor slot and marks it InvalidFD.
//
// A failing close does not stop the loop. All failures are returned together;
// errors.Is matches any of them. Slots are marked closed even when the
// syscall fails, so a second Close is always a no-op.
func (m *Manager) Close(h *Handle) error {
	if h == nil {
		return nil
	}
	if err := h.check(errors.PhaseClose); err != nil {
		return err
	}

	var errs error
	failed := 0
	for i := 0; i < int(h.numFds); i++ {
		fd := int(h.data[i])
		if fd < 0 {
			continue
		}
		h.data[i] = InvalidFD
		if err := m.sys.Close(fd); err != nil {
			m.log().Debug("close descriptor failed",
				zap.Int("slot", i),
				zap.Int("fd", fd),
				zap.Error(err))
			errs = multierr.Append(errs, errors.Syscall(errors.PhaseClose, "close", i, fd, err))
			failed++
		}
	}

	if errs != nil {
		return errors.New(errors.PhaseClose, errors.KindOS).
			Detail("%d of %d descriptors failed to close", failed, h.numFds).
			Cause(errs).
			Build()
	}
	return nil
}

// Probe is the sizing half of the duplication protocol: it copies src's
// shape into the zero-shaped dst and duplicates nothing. dst is given fresh
// storage of that shape, so it can be passed straight to DuplicateInto.
// The zero Handle is a valid probe target.
func (m *Manager) Probe(dst, src *Handle) error {
	if dst == nil || src == nil {
		return errors.InvalidArgument(errors.PhaseDup, "nil handle")
	}
	if err := src.check(errors.PhaseDup); err != nil {
		return err
	}
	if !dst.Shape().IsZero() || len(dst.data) != 0 {
		return errors.InvalidArgument(errors.PhaseDup, "probe target must be zero-shaped, has %s", dst.Shape())
	}
	dst.reshape(int(src.numFds), int(src.numInts))
	return nil
}

// DuplicateInto fills dst with independent duplicates of src's descriptors
// and a verbatim copy of its integers. The shapes must match exactly.
//
// If any duplication fails, every descriptor duplicated so far is closed and
// dst is left as it was. src is never modified.
func (m *Manager) DuplicateInto(dst, src *Handle) error {
	if dst == nil || src == nil {
		return errors.InvalidArgument(errors.PhaseDup, "nil handle")
	}
	if dst == src {
		return errors.InvalidArgument(errors.PhaseDup, "cannot duplicate a handle into itself")
	}
	if err := src.check(errors.PhaseDup); err != nil {
		return err
	}
	if err := dst.check(errors.PhaseDup); err != nil {
		return err
	}
	if dst.numFds != src.numFds || dst.numInts != src.numInts {
		return errors.ShapeMismatch(errors.PhaseDup,
			int(dst.numFds), int(dst.numInts), int(src.numFds), int(src.numInts))
	}

	n := int(src.numFds)
	acc := &dupSet{m: m, fds: make([]int32, 0, n)}
	defer acc.release()

	for i := 0; i < n; i++ {
		fd := int(src.data[i])
		if fd < 0 {
			acc.fds = append(acc.fds, InvalidFD)
			continue
		}
		nfd, err := m.sys.Dup(fd)
		if err != nil {
			m.log().Debug("duplicate descriptor failed, rolling back",
				zap.Int("slot", i),
				zap.Int("fd", fd),
				zap.Int("rolled_back", len(acc.fds)),
				zap.Error(err))
			return errors.Syscall(errors.PhaseDup, "dup", i, fd, err)
		}
		acc.fds = append(acc.fds, int32(nfd))
	}

	copy(dst.data[:n], acc.commit())
	copy(dst.data[n:], src.data[n:])
	return nil
}

// Dup is the single-call form of the protocol: a zero-shaped dst is probed,
// anything else is duplicated into.
func (m *Manager) Dup(dst, src *Handle) error {
	if dst == nil || src == nil {
		return errors.InvalidArgument(errors.PhaseDup, "nil handle")
	}
	if dst.Shape().IsZero() && len(dst.data) == 0 {
		return m.Probe(dst, src)
	}
	return m.DuplicateInto(dst, src)
}

// Copy returns a deep copy of src with every descriptor duplicated.
// A nil src yields (nil, nil). On failure nothing is left allocated or open.
func (m *Manager) Copy(src *Handle) (*Handle, error) {
	if src == nil {
		return nil, nil
	}

	var probe Handle
	if err := m.Probe(&probe, src); err != nil {
		return nil, errors.Wrap(errors.PhaseCopy, errors.KindOf(err), err, "probe source shape")
	}

	shape := ShapeOf(&probe)
	dst, err := m.Create(shape.NumFds, shape.NumInts)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCopy, errors.KindOf(err), err, "allocate destination")
	}

	if err := m.DuplicateInto(dst, src); err != nil {
		_ = m.Delete(dst)
		return nil, errors.Wrap(errors.PhaseCopy, errors.KindOf(err), err, "duplicate descriptors")
	}
	return dst, nil
}

// dupSet accumulates descriptors duplicated by an in-flight DuplicateInto.
// Unless commit is called, release closes all of them.
type dupSet struct {
	m         *Manager
	fds       []int32
	committed bool
}

func (s *dupSet) commit() []int32 {
	s.committed = true
	return s.fds
}

func (s *dupSet) release() {
	if s.committed {
		return
	}
	for i, fd := range s.fds {
		if fd < 0 {
			continue
		}
		if err := s.m.sys.Close(int(fd)); err != nil {
			s.m.log().Warn("rollback close failed",
				zap.Int("slot", i),
				zap.Int32("fd", fd),
				zap.Error(err))
		}
	}
	s.fds = nil
}
