// Package login runs the portal login flow: open a browser surface at the
// login page, poll it until it reaches the landing URL, capture cookies into
// a session, and emit exactly one terminal event per attempt.
package login

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gemdesk/gemdesk/internal/session"
	"github.com/gemdesk/gemdesk/internal/surface"
)

// EventType names a terminal login outcome. The values double as SSE event
// names on the host API.
type EventType string

const (
	EventSuccess   EventType = "auth-success"
	EventCancelled EventType = "auth-cancelled"
	EventError     EventType = "auth-error"
	EventTimeout   EventType = "auth-timeout"
)

// Event is the single terminal notification of one login attempt.
type Event struct {
	Type    EventType        `json:"type"`
	Session *session.Session `json:"session,omitempty"` // set on success
	Message string           `json:"message,omitempty"`  // set on error
}

// Sink receives login events. The controller guarantees at most one event per
// attempt and does not care how the sink delivers it.
type Sink func(Event)

// Config drives a Controller. Zero values get the portal defaults.
type Config struct {
	LoginURL   string
	LandingURL string // prefix that marks a completed login

	PollInterval time.Duration // default 500ms
	MaxAttempts  int           // default 600 (5 minutes at 500ms)
	SessionTTL   time.Duration // default 24h
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 600
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
}

// Controller owns the login flow. Start is idempotent while a surface is
// open; Cancel may race freely with the monitor goroutine because the handle
// is taken atomically and a monitor only ever clears its own surface.
type Controller struct {
	cfg    Config
	store  *session.Store
	opener surface.Opener
	sink   Sink
	log    *slog.Logger

	// startMu serializes the check-open-register sequence in Start so two
	// concurrent calls cannot both observe an empty slot and open two windows.
	startMu sync.Mutex
}

// NewController wires a controller. sink may be nil to drop events.
func NewController(cfg Config, store *session.Store, opener surface.Opener, sink Sink, log *slog.Logger) *Controller {
	cfg.applyDefaults()
	return &Controller{cfg: cfg, store: store, opener: opener, sink: sink, log: log}
}

// Start opens the login surface and begins monitoring it. If a login surface
// is already open it is refocused and no new flow starts.
func (c *Controller) Start() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if s := c.store.LoginSurface(); s != nil {
		if s.Alive() {
			if err := s.Focus(); err != nil {
				c.log.Debug("refocus login surface", "error", err)
			}
			return nil
		}
		// Stale handle from a flow that died without cleaning up.
		c.store.SetLoginSurface(nil)
	}

	s, err := c.opener.Open(c.cfg.LoginURL)
	if err != nil {
		return fmt.Errorf("open login surface: %w", err)
	}
	c.store.SetLoginSurface(s)
	c.log.Info("login flow started", "url", c.cfg.LoginURL)
	go c.monitor(s)
	return nil
}

// Cancel closes the open login surface, if any, and clears the handle. The
// monitor loop observes the dead surface on its next poll and emits the
// cancelled event; Cancel itself emits nothing.
func (c *Controller) Cancel() {
	s := c.store.TakeLoginSurface()
	if s != nil {
		_ = s.Close()
		c.log.Info("login flow cancelled by host")
	}
}

// monitor polls the surface until a terminal condition. Exactly one event is
// emitted. Terminal cleanup clears the slot only while it still holds this
// flow's surface: after a cancel-then-restart the slot belongs to the new
// flow, and a late monitor must leave it alone.
func (c *Controller) monitor(s surface.Surface) {
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		time.Sleep(c.cfg.PollInterval)

		if !s.Alive() {
			// User closed the window, or the host cancelled.
			c.store.ClearLoginSurfaceIf(s)
			c.emit(Event{Type: EventCancelled})
			return
		}

		u, err := s.URL()
		if err != nil {
			// Mid-navigation reads fail transiently; try again next tick.
			continue
		}
		if !strings.HasPrefix(u, c.cfg.LandingURL) {
			continue
		}

		cookies := c.captureCookies(s, u)
		if len(cookies) == 0 {
			_ = s.Close()
			c.store.ClearLoginSurfaceIf(s)
			c.emit(Event{Type: EventError, Message: "failed to extract session cookies"})
			return
		}

		sess := session.Session{
			Cookies:   cookies,
			UserID:    nil, // the portal does not expose one at this point
			ExpiresAt: time.Now().Add(c.cfg.SessionTTL).Unix(),
		}
		c.store.Set(sess)
		_ = s.Close()
		c.store.ClearLoginSurfaceIf(s)
		c.emit(Event{Type: EventSuccess, Session: &sess})
		return
	}

	// Attempts exhausted.
	_ = s.Close()
	c.store.ClearLoginSurfaceIf(s)
	c.emit(Event{Type: EventTimeout})
}

// captureCookies reads the surface's cookies for url and filters out entries
// with empty names or values. A read error yields an empty set, which the
// caller treats as a failed extraction.
func (c *Controller) captureCookies(s surface.Surface, url string) map[string]string {
	raw, err := s.Cookies(url)
	if err != nil {
		c.log.Warn("read login cookies", "error", err)
		return nil
	}
	out := make(map[string]string, len(raw))
	for name, value := range raw {
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func (c *Controller) emit(ev Event) {
	c.log.Info("login flow finished", "outcome", string(ev.Type))
	if c.sink != nil {
		c.sink(ev)
	}
}
