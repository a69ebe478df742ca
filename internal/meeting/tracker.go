package meeting

import (
	"context"
	"sync"

	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
)

type trackerKey struct {
	scope     string
	sessionID int64
}

// Tracker holds the running countdowns of every portal visitor.
type Tracker struct {
	bus  event.Publisher
	opts Options

	mu         sync.Mutex
	countdowns map[trackerKey]*Countdown
}

func NewTracker(bus event.Publisher, opts Options) *Tracker {
	return &Tracker{bus: bus, opts: opts, countdowns: map[trackerKey]*Countdown{}}
}

// Start begins (or restarts) the countdown for m in scope. The countdown
// outlives the request that started it.
func (t *Tracker) Start(scope string, m model.Meeting, ext Extender) *Countdown {
	key := trackerKey{scope: scope, sessionID: m.SessionID}
	c := NewCountdown(m, ext, t.bus, scope, t.opts)

	t.mu.Lock()
	old := t.countdowns[key]
	t.countdowns[key] = c
	t.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	c.Start(context.Background())
	return c
}

func (t *Tracker) Get(scope string, sessionID int64) (*Countdown, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.countdowns[trackerKey{scope: scope, sessionID: sessionID}]
	return c, ok
}

// StopScope stops every countdown of one visitor, e.g. on logout.
func (t *Tracker) StopScope(scope string) {
	t.mu.Lock()
	var stopping []*Countdown
	for key, c := range t.countdowns {
		if key.scope == scope {
			stopping = append(stopping, c)
			delete(t.countdowns, key)
		}
	}
	t.mu.Unlock()

	for _, c := range stopping {
		c.Stop()
	}
}

func (t *Tracker) StopAll() {
	t.mu.Lock()
	all := t.countdowns
	t.countdowns = map[trackerKey]*Countdown{}
	t.mu.Unlock()

	for _, c := range all {
		c.Stop()
	}
}
