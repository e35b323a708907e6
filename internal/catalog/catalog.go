// Package catalog aggregates the portal's paginated sports lineup feed into
// a flat, deduplicated list of stream descriptors.
package catalog

// Status classifies a stream's availability.
type Status string

const (
	StatusLive     Status = "live"
	StatusReplay   Status = "replay"
	StatusUpcoming Status = "upcoming"
)

// Access tiers used by the portal. Member and Premium require a session;
// only Premium is a paid tier.
const (
	TierFree    = "Free"
	TierMember  = "Member"
	TierPremium = "Premium"
)

// Lineup item types the aggregator keeps; everything else (articles,
// promos) is dropped.
const (
	itemTypeLive  = "Live"
	itemTypeMedia = "Media"
)

// StreamDescriptor is one watchable stream. Produced per fetch, never
// persisted; identity is ID.
type StreamDescriptor struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Sport        string  `json:"sport"`
	Status       Status  `json:"status"`
	StartTime    string  `json:"start_time"`
	EndTime      *string `json:"end_time"`
	ThumbnailURL string  `json:"thumbnail_url"`
	StreamURL    string  `json:"stream_url"`
	RequiresAuth bool    `json:"requires_auth"`
	IsPremium    bool    `json:"is_premium"`
}
