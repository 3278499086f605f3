// ABOUTME: Emitter lifecycle events
// ABOUTME: Events are queued under locks and delivered after they are released
package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType identifies what happened to an emitter
type EventType int

const (
	EventPlaying EventType = iota
	EventPaused
	EventStopped
	EventEndTrack
	EventDecodeFailed
	EventStalled
)

func (t EventType) String() string {
	switch t {
	case EventPlaying:
		return "playing"
	case EventPaused:
		return "paused"
	case EventStopped:
		return "stopped"
	case EventEndTrack:
		return "end-track"
	case EventDecodeFailed:
		return "decode-failed"
	case EventStalled:
		return "stalled"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event reports an emitter state change
type Event struct {
	EmitterID uuid.UUID
	Type      EventType
	Err       error
}
