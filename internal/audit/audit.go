// Package audit keeps a trail of logins, logouts and expired sessions.
package audit

import (
	"context"
	"log/slog"
	"time"

	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/session"
)

type Entry struct {
	Action     string `json:"action"`
	OccurredAt string `json:"occurred_at"`
	Scope      string `json:"scope,omitempty"`
	UserID     int64  `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	UserType   string `json:"user_type,omitempty"`
}

type Query struct {
	Action string
	UserID int64
	Email  string
	From   string
	To     string
	Page   int
	Limit  int
}

func (q *Query) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
}

func pageMeta(q Query, total int) model.Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + q.Limit - 1) / q.Limit
	}
	return model.Meta{Page: q.Page, Limit: q.Limit, Total: total, TotalPages: totalPages}
}

// Sink stores entries and answers queries newest first.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, q Query) ([]Entry, model.Meta, error)
}

var recorded = map[event.Type]bool{
	event.TypeSessionLogin:   true,
	event.TypeSessionLogout:  true,
	event.TypeSessionExpired: true,
}

// Recorder copies session events from the bus into a Sink. It subscribes
// on construction, so nothing published after NewRecorder returns is lost.
type Recorder struct {
	events      <-chan event.Event
	unsubscribe func()
	sink        Sink
	log         *slog.Logger
}

func NewRecorder(bus event.Bus, sink Sink) *Recorder {
	events, unsubscribe := bus.Subscribe("")
	return &Recorder{
		events:      events,
		unsubscribe: unsubscribe,
		sink:        sink,
		log:         slog.Default().With("component", "audit"),
	}
}

// Run records until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	defer r.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-r.events:
			if !ok {
				return
			}
			entry, keep := entryFor(e)
			if !keep {
				continue
			}
			writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := r.sink.Append(writeCtx, entry); err != nil {
				r.log.Error("failed to record audit entry", "action", entry.Action, "error", err)
			}
			cancel()
		}
	}
}

func entryFor(e event.Event) (Entry, bool) {
	if !recorded[e.Type] {
		return Entry{}, false
	}

	entry := Entry{Action: string(e.Type), OccurredAt: e.Timestamp, Scope: e.Scope}
	var user *model.User
	switch p := e.Payload.(type) {
	case session.State:
		user = p.User
	case *model.User:
		user = p
	}
	if user != nil {
		entry.UserID = user.ID
		entry.Email = user.Email
		entry.UserType = user.UserType
	}
	return entry, true
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return parseTime(raw)
}

func parseTime(raw string) (time.Time, error) {
	if value, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return value.UTC(), nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
