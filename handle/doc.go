// Package handle implements native handles: a bundle of file descriptors
// and opaque integers passed as one unit between subsystems.
//
// # Layout
//
// A handle carries a fixed header and numFds + numInts trailing slots:
//
//	version   header size in bytes (HeaderSize)
//	numFds    descriptor slots, data[0:numFds]
//	numInts   integer slots, data[numFds:]
//
// Only descriptor slots have ownership. Integer slots are never touched by
// Close or duplication beyond a verbatim copy.
//
// # Lifecycle
//
// Memory and descriptors have separate lifetimes:
//
//	h, _ := handle.Create(2, 1)  // slots start as InvalidFD / 0
//	h.SetFd(0, r)
//	h.SetFd(1, w)
//	h.SetInt(0, 42)
//
//	c, _ := handle.Copy(h)       // independent duplicates
//
//	handle.Close(h)              // closes descriptors, keeps storage
//	handle.Delete(h)             // drops storage, never closes
//
// # Duplication protocol
//
// Duplication is a two-step handshake. Probe a zero-shaped handle to learn
// the source shape, then duplicate into a handle of that shape:
//
//	var dst handle.Handle
//	handle.Probe(&dst, src)          // dst now has src's shape, no fds
//	handle.DuplicateInto(&dst, src)  // dup every descriptor
//
// Dup folds both steps into one call, switching on whether dst is
// zero-shaped. If any descriptor fails to duplicate, every descriptor
// already duplicated is closed before the error is returned.
//
// # Flat layout
//
// MarshalBinary and UnmarshalBinary produce and consume the header plus
// slots as host-order int32 values. Transports must carry descriptors out of
// band; the raw numbers are only meaningful in the originating process.
//
// Handles are not safe for concurrent use. A Manager holds no per-handle
// state and may be shared.
package handle
