// Package errors provides structured error types for nativehandle.
//
// Errors are categorized by Phase (which handle operation failed) and Kind
// (error category). The taxonomy is small:
//
//	invalid_argument    malformed handle, shape mismatch, bad slot index
//	resource_exhausted  descriptor table full (EMFILE, ENFILE)
//	os                  any other failed dup or close syscall
//	allocation          handle too large to allocate
//	not_found           unknown registry id
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDup, errors.KindInvalidArgument).
//		Path("fd[1]").
//		Detail("slot out of range").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ShapeMismatch(errors.PhaseDup, 1, 0, 2, 0)
//	err := errors.Syscall(errors.PhaseClose, "close", 0, fd, unix.EBADF)
//
// All errors implement the standard error interface and support errors.Is/As.
// Code converts an error into a negative errno for integer-only boundaries.
package errors
