package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/gemdesk/gemdesk/internal/apperr"
	"github.com/gemdesk/gemdesk/internal/httpclient"
)

// Config drives an Aggregator. Zero values get the portal defaults.
type Config struct {
	// Endpoint is the catalog section URL (no query parameters).
	Endpoint string

	// PageSize is the pageSize query parameter; a page with fewer lineups
	// than this is the last one. Default 6.
	PageSize int

	// MaxPages bounds a run against an upstream that never returns a short
	// page. Default 10.
	MaxPages int

	// PageInterval paces successive page requests. Default 200ms.
	PageInterval time.Duration

	// Client may be nil to use the shared httpclient.
	Client *http.Client
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = 6
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 10
	}
	if c.PageInterval <= 0 {
		c.PageInterval = 200 * time.Millisecond
	}
	if c.Client == nil {
		c.Client = httpclient.Default()
	}
}

// Aggregator fetches and flattens the catalog. Safe for concurrent use; each
// Fetch run keeps its own dedup state.
type Aggregator struct {
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// NewAggregator returns an Aggregator for cfg.
func NewAggregator(cfg Config, log *slog.Logger) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.PageInterval), 1),
		log:     log,
		now:     time.Now,
	}
}

// Fetch pulls catalog pages starting at 1 until a short page or the page
// ceiling, flattening lineups into deduplicated descriptors. Any transport or
// parse failure aborts the whole run; no partial catalog is returned.
func (a *Aggregator) Fetch(ctx context.Context) ([]StreamDescriptor, error) {
	seen := make(map[string]struct{})
	streams := []StreamDescriptor{}
	start := time.Now()

	for page := 1; page <= a.cfg.MaxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		p, err := a.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		streams = append(streams, a.flatten(p.Lineups.Results, seen)...)
		if len(p.Lineups.Results) < a.cfg.PageSize {
			break
		}
	}

	a.log.Info("catalog fetched",
		"streams", len(streams),
		"duration", time.Since(start).Round(time.Millisecond))
	return streams, nil
}

func (a *Aggregator) fetchPage(ctx context.Context, page int) (*catalogPage, error) {
	q := url.Values{}
	q.Set("device", "web")
	q.Set("pageSize", strconv.Itoa(a.cfg.PageSize))
	q.Set("pageNumber", strconv.Itoa(page))
	u := a.cfg.Endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.cfg.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "fetch catalog", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.WithCode(apperr.KindUpstream, resp.StatusCode,
			fmt.Sprintf("catalog API returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "read catalog response", err)
	}
	var p catalogPage
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "parse catalog response", err)
	}
	return &p, nil
}

// flatten converts lineups into descriptors, filtering unrecognized item
// types and dropping identity keys already seen in this run (first wins).
func (a *Aggregator) flatten(lineups []lineup, seen map[string]struct{}) []StreamDescriptor {
	var out []StreamDescriptor
	for _, ln := range lineups {
		for _, it := range ln.Items {
			if it.Type != itemTypeLive && it.Type != itemTypeMedia {
				continue
			}
			id := it.identityKey()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			airDate := it.airDate()
			out = append(out, StreamDescriptor{
				ID:           id,
				Title:        it.Title,
				Description:  it.Description,
				Sport:        ln.Title,
				Status:       classify(it.IsVodEnabled, airDate, a.now()),
				StartTime:    airDate,
				EndTime:      nil,
				ThumbnailURL: it.thumbnail(),
				StreamURL:    it.URL,
				RequiresAuth: it.Tier == TierMember || it.Tier == TierPremium,
				IsPremium:    it.Tier == TierPremium,
			})
		}
	}
	return out
}

// classify derives a stream's status. An unparseable or empty air-date counts
// as "not in the past" so broken dates fail toward upcoming/replay, never
// toward live.
func classify(vodEnabled bool, airDate string, now time.Time) Status {
	isPast := false
	if t, err := time.Parse(time.RFC3339, airDate); err == nil {
		isPast = t.Before(now)
	}
	switch {
	case !vodEnabled && isPast:
		return StatusLive
	case vodEnabled:
		return StatusReplay
	default:
		return StatusUpcoming
	}
}

func formatMediaID(id int64) string {
	return strconv.FormatInt(id, 10)
}
