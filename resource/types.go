package resource

import (
	"github.com/wippyai/nativehandle/handle"
)

// ID is an opaque reference to a handle in a table.
// ID 0 is reserved and always invalid.
type ID uint32

// EventType identifies a registry lifecycle notification.
type EventType uint8

const (
	EventCreated  EventType = iota // handle inserted
	EventRemoved                   // handle detached, descriptors left open
	EventReleased                  // handle closed and deleted by the table
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventRemoved:
		return "removed"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event represents a registry lifecycle event.
type Event struct {
	Handle *handle.Handle
	Err    error // close failure reported by a release
	ID     ID
	Type   EventType
}

// Observer receives notifications about registry lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}
