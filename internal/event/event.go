package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionLogin     Type = "session.login"
	TypeSessionLogout    Type = "session.logout"
	TypeSessionExpired   Type = "session.expired"
	TypeSessionRefreshed Type = "session.refreshed"
	TypeSessionUpdated   Type = "session.updated"
	TypeMeetingTick      Type = "meeting.tick"
	TypeMeetingWarning   Type = "meeting.warning"
	TypeMeetingExtended  Type = "meeting.extended"
	TypeMeetingEnded     Type = "meeting.ended"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
	Scope     string `json:"-"` // browser session the event belongs to; empty for broadcast
}

func New(typ Type, scope string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Scope:     scope,
	}
}

type Publisher interface {
	Publish(e Event)
}

type Bus interface {
	Publisher
	// Subscribe returns a channel of events whose Scope matches scope (or all
	// events when scope is empty) and a function that cancels the subscription.
	Subscribe(scope string) (<-chan Event, func())
}
