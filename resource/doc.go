// Package resource provides a registry of native handles addressed by
// small integer ids, for boundaries that can only pass integers around.
//
// # Ownership
//
// A table is the close-owner of every handle inserted into it:
//
//	table := resource.NewTable(nil)
//
//	// Insert a handle, get an id
//	id, err := table.Insert(h)
//
//	// Look it up
//	h, ok := table.Get(id)
//
//	// Hand ownership back to the caller (descriptors stay open)
//	h, err := table.Remove(id)
//
//	// Or let the table close and delete it
//	err := table.Release(id)
//
// # Borrows
//
// Borrow pins an id so that Remove and Release fail with
// ErrOutstandingBorrow until the matching Return. Use it around work that
// reads a handle outside the table lock, such as duplication.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	type logObserver struct{}
//
//	func (logObserver) OnHandleEvent(e resource.Event) {
//	    log.Printf("handle %d %s", e.ID, e.Type)
//	}
//
//	table.Subscribe(logObserver{})
//
// Close releases everything still held. Handles are never garbage collected
// with their descriptors open: forgetting Release or Close leaks them.
package resource
