package watcher

import "time"

// EventType represents the type of file system event
type EventType int

const (
	// EventChanged is emitted when the file was written or replaced (after settling)
	EventChanged EventType = iota
	// EventRemoved is emitted when the file is gone
	EventRemoved
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventChanged:
		return "changed"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
