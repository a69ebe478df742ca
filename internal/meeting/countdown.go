// Package meeting runs the countdown shown while a tutoring session's video
// room is open.
package meeting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tutorhub-portal/internal/event"
	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

var (
	ErrNoExtensionsLeft = apierror.New("CONFLICT", "No meeting extensions left", "", http.StatusConflict)
	ErrMeetingEnded     = apierror.New("CONFLICT", "This meeting has already ended", "", http.StatusConflict)
)

// Extender asks the backend for more time. *service.SessionService implements it.
type Extender interface {
	Extend(ctx context.Context, sessionID int64, minutes int) (model.Meeting, error)
}

type Options struct {
	// Warning is how long before the end meeting.warning fires.
	Warning time.Duration
	// Tick defaults to one second.
	Tick time.Duration
}

type Status struct {
	SessionID        int64     `json:"session_id"`
	EndsAt           time.Time `json:"ends_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	ExtensionsUsed   int       `json:"extensions_used"`
	MaxExtensions    int       `json:"max_extensions"`
	Ended            bool      `json:"ended"`
}

type Countdown struct {
	sessionID int64
	scope     string
	ext       Extender
	bus       event.Publisher
	warning   time.Duration
	tick      time.Duration
	now       func() time.Time

	mu      sync.Mutex
	endsAt  time.Time
	used    int
	max     int
	warned  bool
	ended   bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewCountdown(m model.Meeting, ext Extender, bus event.Publisher, scope string, opts Options) *Countdown {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if bus == nil {
		bus = event.Discard{}
	}
	return &Countdown{
		sessionID: m.SessionID,
		scope:     scope,
		ext:       ext,
		bus:       bus,
		warning:   opts.Warning,
		tick:      opts.Tick,
		now:       time.Now,
		endsAt:    m.EndsAt,
		used:      m.ExtensionsUsed,
		max:       m.MaxExtensions,
	}
}

// Start launches the ticker. It runs until the meeting ends, Stop is called
// or ctx is cancelled. Starting a running countdown does nothing.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.ended {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Stop halts the ticker and waits for it to exit.
func (c *Countdown) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Countdown) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Extend asks the backend for minutes more and moves the deadline to what it
// grants.
func (c *Countdown) Extend(ctx context.Context, minutes int) (Status, error) {
	c.mu.Lock()
	switch {
	case c.ended:
		c.mu.Unlock()
		return c.Status(), ErrMeetingEnded
	case c.max > 0 && c.used >= c.max:
		c.mu.Unlock()
		return c.Status(), ErrNoExtensionsLeft
	}
	c.mu.Unlock()

	m, err := c.ext.Extend(ctx, c.sessionID, minutes)
	if err != nil {
		return c.Status(), err
	}

	c.mu.Lock()
	if !m.EndsAt.IsZero() {
		c.endsAt = m.EndsAt
	}
	c.used = m.ExtensionsUsed
	if m.MaxExtensions > 0 {
		c.max = m.MaxExtensions
	}
	if c.endsAt.Sub(c.now()) > c.warning {
		c.warned = false
	}
	status := c.statusLocked()
	c.mu.Unlock()

	c.publish(event.TypeMeetingExtended, status)
	return status, nil
}

func (c *Countdown) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		if c.step() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// step publishes the current state and reports whether the meeting is over.
func (c *Countdown) step() bool {
	c.mu.Lock()
	status := c.statusLocked()
	warn := !c.warned && !status.Ended && c.endsAt.Sub(c.now()) <= c.warning
	if warn {
		c.warned = true
	}
	if status.Ended {
		c.ended = true
	}
	c.mu.Unlock()

	if status.Ended {
		slog.Info("meeting ended", "component", "meeting", "session_id", c.sessionID)
		c.publish(event.TypeMeetingEnded, status)
		return true
	}
	c.publish(event.TypeMeetingTick, status)
	if warn {
		c.publish(event.TypeMeetingWarning, status)
	}
	return false
}

func (c *Countdown) statusLocked() Status {
	remaining := c.endsAt.Sub(c.now())
	secs := int((remaining + time.Second - 1) / time.Second)
	if remaining <= 0 {
		secs = 0
	}
	return Status{
		SessionID:        c.sessionID,
		EndsAt:           c.endsAt,
		RemainingSeconds: secs,
		ExtensionsUsed:   c.used,
		MaxExtensions:    c.max,
		Ended:            c.ended || remaining <= 0,
	}
}

func (c *Countdown) publish(typ event.Type, status Status) {
	c.bus.Publish(event.New(typ, c.scope, status))
}

// IsLimit reports whether err means the meeting cannot be extended any more.
func IsLimit(err error) bool {
	return errors.Is(err, ErrNoExtensionsLeft) || errors.Is(err, ErrMeetingEnded)
}
