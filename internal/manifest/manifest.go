// Package manifest resolves a stream URL into a playable manifest through
// the portal's authenticated validation endpoint.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gemdesk/gemdesk/internal/apperr"
	"github.com/gemdesk/gemdesk/internal/httpclient"
	"github.com/gemdesk/gemdesk/internal/session"
)

// Bitrate is one variant of a resolved stream.
type Bitrate struct {
	Bitrate uint32 `json:"bitrate"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`
	Lines   string `json:"lines"`
}

// Manifest is the playable description of one stream. Validity is determined
// solely by ErrorCode == 0, independent of transport status.
type Manifest struct {
	URL       string    `json:"url"`
	ErrorCode int       `json:"error_code"`
	Message   *string   `json:"message"`
	Bitrates  []Bitrate `json:"bitrates"`
}

// validationResponse is the wire form of the validation endpoint's reply.
type validationResponse struct {
	URL       string    `json:"url"`
	Message   *string   `json:"message"`
	ErrorCode int       `json:"errorCode"`
	Bitrates  []Bitrate `json:"bitrates"`
}

// Fixed device/format parameters of the validation call.
var validationParams = map[string]string{
	"appCode":         "medianetlive",
	"connectionType":  "hd",
	"deviceType":      "ipad",
	"multibitrate":    "true",
	"output":          "json",
	"tech":            "hls",
	"manifestVersion": "2",
	"manifestType":    "desktop",
}

// Config drives a Resolver.
type Config struct {
	// Endpoint is the validation base URL.
	Endpoint string

	// Client may be nil to use the shared httpclient.
	Client *http.Client
}

func (c *Config) applyDefaults() {
	if c.Client == nil {
		c.Client = httpclient.Default()
	}
}

// Resolver performs authenticated manifest lookups against the validation
// endpoint using the session from the store.
type Resolver struct {
	cfg   Config
	store *session.Store
	log   *slog.Logger
}

// NewResolver returns a Resolver reading sessions from store.
func NewResolver(cfg Config, store *session.Store, log *slog.Logger) *Resolver {
	cfg.applyDefaults()
	return &Resolver{cfg: cfg, store: store, log: log}
}

// MediaID extracts the numeric media identifier from the trailing
// dash-delimited segment of a stream URL (".../some-event-30093" -> 30093).
// A URL without dashes is a single segment, so a bare "30093" resolves too.
func MediaID(streamURL string) (int64, error) {
	seg := streamURL
	if i := strings.LastIndex(streamURL, "-"); i >= 0 {
		seg = streamURL[i+1:]
	}
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.KindInvalidInput, "invalid stream URL format")
	}
	return id, nil
}

// Resolve looks up the manifest for streamURL. It requires an active session;
// the session snapshot is taken under the store's lock and used outside it,
// so the store is never held across the network call.
func (r *Resolver) Resolve(ctx context.Context, streamURL string) (*Manifest, error) {
	id, err := MediaID(streamURL)
	if err != nil {
		return nil, err
	}

	sess, ok := r.store.Get()
	if !ok {
		return nil, apperr.New(apperr.KindNotAuthenticated, "not authenticated")
	}

	q := url.Values{}
	for k, v := range validationParams {
		q.Set(k, v)
	}
	q.Set("idMedia", strconv.FormatInt(id, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", sess.CookieHeader())

	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "fetch stream manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Body content is irrelevant; the session is dead either way.
		return nil, apperr.New(apperr.KindSessionExpired, "session expired - please login again")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.WithCode(apperr.KindUpstream, resp.StatusCode,
			fmt.Sprintf("manifest API returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "read manifest response", err)
	}
	var v validationResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "parse manifest response", err)
	}

	// Application errors ride on a successful transport and take precedence
	// once parsing succeeds.
	if v.ErrorCode != 0 {
		msg := "Unknown error"
		if v.Message != nil {
			msg = *v.Message
		}
		return nil, apperr.WithCode(apperr.KindApplication, v.ErrorCode,
			fmt.Sprintf("API error %d: %s", v.ErrorCode, msg))
	}

	r.log.Debug("manifest resolved", "id_media", id, "bitrates", len(v.Bitrates))
	return &Manifest{
		URL:       v.URL,
		ErrorCode: v.ErrorCode,
		Message:   v.Message,
		Bitrates:  v.Bitrates, // order preserved as received
	}, nil
}
