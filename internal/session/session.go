// Package session holds the process-wide authenticated portal session.
package session

import (
	"sort"
	"strings"
	"sync"

	"github.com/gemdesk/gemdesk/internal/surface"
)

// Session is an authenticated portal session captured from the login surface.
// Cookies only ever contains entries with non-empty names and values.
type Session struct {
	Cookies   map[string]string `json:"cookies"`
	UserID    *string           `json:"user_id"`
	ExpiresAt int64             `json:"expires_at"` // unix seconds
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// store mutations.
func (s Session) Clone() Session {
	out := s
	out.Cookies = make(map[string]string, len(s.Cookies))
	for k, v := range s.Cookies {
		out.Cookies[k] = v
	}
	return out
}

// CookieHeader renders the session cookies as a single "name=value; ..."
// header value. Keys are sorted so requests are reproducible.
func (s Session) CookieHeader() string {
	keys := make([]string, 0, len(s.Cookies))
	for k := range s.Cookies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Cookies[k])
	}
	return strings.Join(parts, "; ")
}

// Store is a thread-safe cell holding at most one active session and at most
// one in-flight login surface. It does no I/O and no validation; both are the
// caller's job. The two slots are guarded independently so a slow login flow
// never blocks session readers.
type Store struct {
	mu      sync.Mutex
	session *Session

	surfaceMu sync.Mutex
	surface   surface.Surface
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a snapshot of the active session, if any.
func (st *Store) Get() (Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.session == nil {
		return Session{}, false
	}
	return st.session.Clone(), true
}

// Set atomically replaces the active session.
func (st *Store) Set(s Session) {
	c := s.Clone()
	st.mu.Lock()
	st.session = &c
	st.mu.Unlock()
}

// Clear atomically removes the active session.
func (st *Store) Clear() {
	st.mu.Lock()
	st.session = nil
	st.mu.Unlock()
}

// LoginSurface returns the in-flight login surface, or nil.
func (st *Store) LoginSurface() surface.Surface {
	st.surfaceMu.Lock()
	defer st.surfaceMu.Unlock()
	return st.surface
}

// SetLoginSurface replaces the login surface handle; nil clears it.
func (st *Store) SetLoginSurface(s surface.Surface) {
	st.surfaceMu.Lock()
	st.surface = s
	st.surfaceMu.Unlock()
}

// TakeLoginSurface atomically removes and returns the handle, or nil when the
// slot is empty.
func (st *Store) TakeLoginSurface() surface.Surface {
	st.surfaceMu.Lock()
	defer st.surfaceMu.Unlock()
	s := st.surface
	st.surface = nil
	return s
}

// ClearLoginSurfaceIf empties the slot only while it still holds s. A monitor
// finishing late must not drop a handle that a newer flow has registered.
func (st *Store) ClearLoginSurfaceIf(s surface.Surface) {
	st.surfaceMu.Lock()
	if st.surface == s {
		st.surface = nil
	}
	st.surfaceMu.Unlock()
}
