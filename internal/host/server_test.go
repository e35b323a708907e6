package host

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemdesk/gemdesk/internal/catalog"
	"github.com/gemdesk/gemdesk/internal/login"
	"github.com/gemdesk/gemdesk/internal/manifest"
	"github.com/gemdesk/gemdesk/internal/session"
	"github.com/gemdesk/gemdesk/internal/surface"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubSurface never reaches the landing page, so login flows started in
// tests stay pending until cancelled.
type stubSurface struct{ closed bool }

func (s *stubSurface) URL() (string, error)                      { return "https://portal.example/login", nil }
func (s *stubSurface) Cookies(string) (map[string]string, error) { return nil, nil }
func (s *stubSurface) Focus() error                              { return nil }
func (s *stubSurface) Alive() bool                               { return !s.closed }
func (s *stubSurface) Close() error                              { s.closed = true; return nil }

type stubOpener struct{}

func (stubOpener) Open(string) (surface.Surface, error) { return &stubSurface{}, nil }

// testHost wires a Server around httptest upstreams for catalog and
// validation.
type testHost struct {
	store  *session.Store
	broker *Broker
	srv    *Server
}

func newTestHost(t *testing.T, upstream http.Handler) *testHost {
	t.Helper()
	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	store := session.NewStore()
	broker := NewBroker()
	metrics := NewMetrics()
	log := testLogger()

	controller := login.NewController(login.Config{
		LoginURL:     "https://portal.example/login",
		LandingURL:   "https://portal.example/landing",
		PollInterval: time.Hour, // never progresses during a test
		MaxAttempts:  1,
	}, store, stubOpener{}, EventSink(broker, metrics, log), log)
	t.Cleanup(controller.Cancel)

	agg := catalog.NewAggregator(catalog.Config{
		Endpoint:     up.URL + "/catalog",
		PageSize:     2,
		MaxPages:     10,
		PageInterval: time.Millisecond,
		Client:       up.Client(),
	}, log)
	res := manifest.NewResolver(manifest.Config{
		Endpoint: up.URL + "/validation",
		Client:   up.Client(),
	}, store, log)

	return &testHost{
		store:  store,
		broker: broker,
		srv:    New(store, controller, agg, res, broker, metrics, log),
	}
}

func doReq(t *testing.T, h *testHost, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSessionEndpoints(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())

	rec := doReq(t, h, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "empty store")

	body, _ := json.Marshal(session.Session{
		Cookies:   map[string]string{"sid": "abc"},
		ExpiresAt: 1234567890,
	})
	rec = doReq(t, h, http.MethodPut, "/api/session", body)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doReq(t, h, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.Cookies["sid"])

	rec = doReq(t, h, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doReq(t, h, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPutSession_badBody(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())

	rec := doReq(t, h, http.MethodPut, "/api/session", []byte("{nope"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var e map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "invalid_input", e["kind"])
}

func TestStartAndCancelLogin(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())

	rec := doReq(t, h, http.MethodPost, "/api/login", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotNil(t, h.store.LoginSurface())

	rec = doReq(t, h, http.MethodDelete, "/api/login", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, h.store.LoginSurface())
}

func TestFetchStreams(t *testing.T) {
	h := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/catalog", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"lineups": map[string]any{
				"results": []map[string]any{{
					"title": "Hockey",
					"items": []map[string]any{{
						"title":   "Gold Medal Game",
						"key":     "gold",
						"url":     "https://portal.example/media/gold-30093",
						"type":    "Live",
						"tier":    "Free",
						"idMedia": 30093,
					}},
				}},
			},
		})
	}))

	rec := doReq(t, h, http.MethodGet, "/api/streams", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var streams []catalog.StreamDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
	require.Len(t, streams, 1)
	assert.Equal(t, "30093", streams[0].ID)
	assert.Equal(t, "Hockey", streams[0].Sport)
}

func TestFetchStreams_upstreamErrorMapsTo502(t *testing.T) {
	h := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := doReq(t, h, http.MethodGet, "/api/streams", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var e map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "upstream_unavailable", e["kind"])
	assert.EqualValues(t, http.StatusServiceUnavailable, e["code"])
}

func TestResolveManifest(t *testing.T) {
	h := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validation", r.URL.Path)
		assert.Equal(t, "30093", r.URL.Query().Get("idMedia"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":       "https://cdn.example/master.m3u8",
			"errorCode": 0,
		})
	}))
	h.store.Set(session.Session{Cookies: map[string]string{"sid": "abc"}})

	rec := doReq(t, h, http.MethodGet, "/api/manifest?streamUrl=gold-medal-game-30093", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m manifest.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "https://cdn.example/master.m3u8", m.URL)
}

func TestResolveManifest_errorMapping(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())

	rec := doReq(t, h, http.MethodGet, "/api/manifest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing streamUrl")

	rec = doReq(t, h, http.MethodGet, "/api/manifest?streamUrl=event-30093", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no session")

	var e map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "not_authenticated", e["kind"])
}

func TestResolveManifest_expiredSessionMapsTo401(t *testing.T) {
	h := newTestHost(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	h.store.Set(session.Session{Cookies: map[string]string{"sid": "stale"}})

	rec := doReq(t, h, http.MethodGet, "/api/manifest?streamUrl=event-30093", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var e map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "session_expired", e["kind"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())

	rec := doReq(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gemdesk_authenticated")
}

func TestEventsSSE(t *testing.T) {
	h := newTestHost(t, http.NotFoundHandler())
	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the handler time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	h.broker.Publish(login.Event{Type: login.EventSuccess, Session: &session.Session{
		Cookies: map[string]string{"sid": "abc"},
	}})

	rd := bufio.NewReader(resp.Body)
	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: auth-success", strings.TrimSpace(line))

	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var ev login.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, login.EventSuccess, ev.Type)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "abc", ev.Session.Cookies["sid"])
}

func TestBroker_dropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Publish never blocks even once the buffer is full.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(login.Event{Type: login.EventTimeout})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBroker_unsubscribeTwice(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	b.Publish(login.Event{Type: login.EventCancelled})
	assert.Len(t, ch, 0)
}
