package domain

import (
	"strconv"
	"time"
)

// Message represents one tracked email send. It is created when a tracking
// snippet or full HTML body is generated and never mutated afterwards;
// engagement arrives as append-only Open/Click events referencing its ID.
type Message struct {
	ID       string          `json:"id"`
	ToEmail  string          `json:"to_email,omitempty"`
	Subject  string          `json:"subject"`
	SentAt   time.Time       `json:"sent_at"`
	Metadata MessageMetadata `json:"metadata"`
}

// MessageMetadata is the free-form payload stored alongside a message.
// Links is keyed by the decimal link index ("0", "1", ...) because the map
// round-trips through JSON, where object keys are always strings.
type MessageMetadata struct {
	Campaign string            `json:"campaign,omitempty"`
	Manual   bool              `json:"manual,omitempty"`
	SentAt   string            `json:"sent_at,omitempty"`
	Links    map[string]string `json:"links,omitempty"`
}

// Link returns the destination URL for a link index received as text.
// Serialized metadata may carry the key either verbatim or in normalized
// decimal form ("07" vs "7"), so both spellings are checked.
func (m MessageMetadata) Link(index string) (string, bool) {
	if u, ok := m.Links[index]; ok {
		return u, true
	}
	if n, err := strconv.Atoi(index); err == nil {
		if u, ok := m.Links[strconv.Itoa(n)]; ok {
			return u, true
		}
	}
	return "", false
}

// OpenEvent is one row per verified pixel request. Requester details are
// best-effort and never required for acceptance.
type OpenEvent struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	OpenedAt  time.Time `json:"opened_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"ua,omitempty"`
	Referer   string    `json:"referer,omitempty"`
}

// ClickEvent is one row per verified click-redirect request. URL is the
// resolved destination, not the raw link index.
type ClickEvent struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	URL       string    `json:"url"`
	ClickedAt time.Time `json:"clicked_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"ua,omitempty"`
}

// CampaignStats is the derived per-message view. It is recomputed on demand
// and never persisted.
//
// OpenRate is opens*100 with one decimal place ("300.0%"). That is the
// count-based formula the dashboard has always shown, not opens/sent; see
// stats.ComputeStats before changing it.
type CampaignStats struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	SentAt   time.Time `json:"sent_at"`
	Opens    int       `json:"opens"`
	Clicks   int       `json:"clicks"`
	OpenRate string    `json:"open_rate"`
}

// StatsSummary is the campaign list view returned by /api/stats.
type StatsSummary struct {
	TotalCampaigns int             `json:"total_campaigns"`
	TotalOpens     int             `json:"total_opens"`
	TotalClicks    int             `json:"total_clicks"`
	Campaigns      []CampaignStats `json:"campaigns"`
}
