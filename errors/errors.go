package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
)

// Phase indicates which handle operation produced the error
type Phase string

const (
	PhaseCreate Phase = "create" // handle allocation
	PhaseDelete Phase = "delete" // memory release
	PhaseClose  Phase = "close"  // descriptor close
	PhaseDup    Phase = "dup"    // probe and descriptor duplication
	PhaseCopy   Phase = "copy"   // probe + create + dup
	PhaseEncode Phase = "encode" // handle to flat layout
	PhaseDecode Phase = "decode" // flat layout to handle
	PhaseHost   Phase = "host"   // registry and guest-facing calls
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArgument   Kind = "invalid_argument"
	KindResourceExhausted Kind = "resource_exhausted"
	KindOS                Kind = "os"
	KindAllocation        Kind = "allocation"
	KindNotFound          Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the slot path, e.g. "fd[2]"
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidArgument creates an invalid argument error
func InvalidArgument(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: fmt.Sprintf(format, args...),
	}
}

// ShapeMismatch creates the error returned when two handles disagree on shape
func ShapeMismatch(phase Phase, dstFds, dstInts, srcFds, srcInts int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidArgument,
		Detail: fmt.Sprintf("shape mismatch: dst has %d fds/%d ints, src has %d fds/%d ints", dstFds, dstInts, srcFds, srcInts),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, numFds, numInts int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("cannot allocate handle with %d fds and %d ints", numFds, numInts),
	}
}

// Syscall wraps a failed descriptor syscall. Descriptor table exhaustion is
// reported as KindResourceExhausted, everything else as KindOS.
func Syscall(phase Phase, op string, slot, fd int, cause error) *Error {
	kind := KindOS
	if stderrors.Is(cause, syscall.EMFILE) || stderrors.Is(cause, syscall.ENFILE) {
		kind = KindResourceExhausted
	}
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Path:   []string{fmt.Sprintf("fd[%d]", slot)},
		Detail: fmt.Sprintf("%s(%d)", op, fd),
		Value:  fd,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, id uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %d not found", what, id),
		Value:  id,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsKind reports whether err carries a structured error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost structured error in err's chain,
// or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
