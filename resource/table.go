package resource

import (
	stderrors "errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/wippyai/nativehandle/errors"
	"github.com/wippyai/nativehandle/handle"
)

// Table maps ids to handles it owns. Inserting a handle makes the table its
// close-owner until the handle is removed again.
// Thread-safe; the handles themselves are not, so callers that mutate a
// handle obtained from Get must not race with Release.
type Table struct {
	backend   *LocalBackend
	mgr       *handle.Manager
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a table that closes handles through mgr.
// A nil mgr uses the platform syscalls.
func NewTable(mgr *handle.Manager) *Table {
	if mgr == nil {
		mgr = handle.NewManager()
	}
	return &Table{
		backend: NewLocalBackend(),
		mgr:     mgr,
	}
}

// Manager returns the handle manager used for releases.
func (t *Table) Manager() *handle.Manager {
	return t.mgr
}

// Insert adds h and returns its id.
func (t *Table) Insert(h *handle.Handle) (ID, error) {
	if h == nil {
		return 0, errors.InvalidArgument(errors.PhaseHost, "nil handle")
	}

	id, err := t.backend.Create(h)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseHost, errors.KindInvalidArgument, err, "insert handle")
	}

	t.notify(Event{Type: EventCreated, ID: id, Handle: h})
	return id, nil
}

// Get retrieves a handle by id.
func (t *Table) Get(id ID) (*handle.Handle, bool) {
	return t.backend.Get(id)
}

// Borrow pins id against Remove and Release until Return is called.
func (t *Table) Borrow(id ID) (*handle.Handle, bool) {
	return t.backend.Borrow(id)
}

// Return releases a pin taken by Borrow.
func (t *Table) Return(id ID) bool {
	return t.backend.ReturnBorrow(id)
}

// Remove detaches id and hands ownership of its handle back to the caller.
// Nothing is closed or deleted.
func (t *Table) Remove(id ID) (*handle.Handle, error) {
	h, err := t.drop(id)
	if err != nil {
		return nil, err
	}
	t.notify(Event{Type: EventRemoved, ID: id, Handle: h})
	return h, nil
}

// Release detaches id, closes its descriptors and deletes it. The handle is
// deleted even when some descriptors fail to close; those failures are
// returned.
func (t *Table) Release(id ID) error {
	h, err := t.drop(id)
	if err != nil {
		return err
	}
	return t.release(id, h)
}

func (t *Table) drop(id ID) (*handle.Handle, error) {
	h, err := t.backend.Drop(id)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindInvalidArgument, err, "drop handle")
	}
	if h == nil {
		return nil, errors.NotFound(errors.PhaseHost, "handle", uint32(id))
	}
	return h, nil
}

func (t *Table) release(id ID, h *handle.Handle) error {
	err := multierr.Append(t.mgr.Close(h), t.mgr.Delete(h))
	t.notify(Event{Type: EventReleased, ID: id, Handle: h, Err: err})
	return err
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of handles held.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Close releases every handle still held, borrowed or not, and stops
// accepting inserts. All close failures are returned together.
func (t *Table) Close() error {
	var errs error
	for id, h := range t.backend.Close() {
		errs = multierr.Append(errs, t.release(id, h))
	}
	return errs
}

// IsClosed reports whether err came from using a closed table.
func IsClosed(err error) bool {
	return stderrors.Is(err, ErrClosed)
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
