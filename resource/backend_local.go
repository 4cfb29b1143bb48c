package resource

import (
	"errors"
	"sync"

	"github.com/wippyai/nativehandle/handle"
)

var (
	ErrClosed            = errors.New("handle registry closed")
	ErrOutstandingBorrow = errors.New("cannot drop handle with outstanding borrows")
)

// LocalBackend is an in-memory id -> handle store with borrow tracking.
// It never closes or deletes handles itself.
type LocalBackend struct {
	entries  []entry
	freeList []ID
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	h           *handle.Handle
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]ID, 0, 16),
	}
}

// Create stores h and returns its id.
func (b *LocalBackend) Create(h *handle.Handle) (ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{h: h, valid: true}

	if len(b.freeList) > 0 {
		id := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[id-1] = e
		return id, nil
	}

	b.entries = append(b.entries, e)
	return ID(len(b.entries)), nil
}

// lookup returns the entry for id. Callers hold b.mu.
func (b *LocalBackend) lookup(id ID) *entry {
	if id == 0 || int(id-1) >= len(b.entries) {
		return nil
	}
	e := &b.entries[id-1]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a handle by id.
func (b *LocalBackend) Get(id ID) (*handle.Handle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(id)
	if e == nil {
		return nil, false
	}
	return e.h, true
}

// Drop detaches id and returns its handle.
func (b *LocalBackend) Drop(id ID) (*handle.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return nil, nil
	}
	if e.borrowCount > 0 {
		return nil, ErrOutstandingBorrow
	}

	h := e.h
	*e = entry{}
	b.freeList = append(b.freeList, id)
	return h, nil
}

// Borrow increments the borrow count for id and returns its handle.
func (b *LocalBackend) Borrow(id ID) (*handle.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return nil, false
	}
	e.borrowCount++
	return e.h, true
}

// ReturnBorrow decrements the borrow count for id.
func (b *LocalBackend) ReturnBorrow(id ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Len returns the number of stored handles.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all stored handles.
func (b *LocalBackend) Each(fn func(ID, *handle.Handle) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(ID(i+1), e.h) {
				break
			}
		}
	}
}

// Close stops accepting handles and returns everything still stored,
// borrowed or not. The caller decides what to do with them.
func (b *LocalBackend) Close() map[ID]*handle.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	left := make(map[ID]*handle.Handle)
	for i, e := range b.entries {
		if e.valid {
			left[ID(i+1)] = e.h
		}
	}

	b.entries = nil
	b.freeList = nil
	return left
}
