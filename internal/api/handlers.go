package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/pkg/httputil"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
	"github.com/orbitl/email-tracker/internal/stats"
	"github.com/orbitl/email-tracker/internal/store"
	"github.com/orbitl/email-tracker/internal/tracklink"
)

// Handlers serves the dashboard API: stats, campaign detail, and snippet
// generation. The tracking protocol itself lives in internal/tracking.
type Handlers struct {
	store      store.Store
	aggregator *stats.Aggregator
	encoder    *tracklink.Encoder
}

// NewHandlers creates the dashboard API handlers.
func NewHandlers(st store.Store, agg *stats.Aggregator, enc *tracklink.Encoder) *Handlers {
	return &Handlers{store: st, aggregator: agg, encoder: enc}
}

// HandleStats serves GET /api/stats: the aggregated campaign list view.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.aggregator.ComputeStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, summary)
}

// campaignDetail is the GET /api/campaign/{id} response: the message plus
// its raw event rows, most recent first.
type campaignDetail struct {
	Campaign *domain.Message     `json:"campaign"`
	Opens    []domain.OpenEvent  `json:"opens"`
	Clicks   []domain.ClickEvent `json:"clicks"`
}

// HandleCampaign serves GET /api/campaign/{id}.
func (h *Handlers) HandleCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.store.GetMessage(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "Campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	opens, err := h.store.ListOpens(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	clicks, err := h.store.ListClicks(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if opens == nil {
		opens = []domain.OpenEvent{}
	}
	if clicks == nil {
		clicks = []domain.ClickEvent{}
	}
	httputil.OK(w, campaignDetail{Campaign: msg, Opens: opens, Clicks: clicks})
}

type generateSnippetRequest struct {
	CampaignName string `json:"campaignName"`
}

type generateSnippetResponse struct {
	Success      bool   `json:"success"`
	Snippet      string `json:"snippet"`
	MessageID    string `json:"messageId"`
	CampaignName string `json:"campaignName"`
}

// HandleGenerateSnippet serves POST /api/generate-snippet. It mints a new
// message, persists it, and returns a pixel-only HTML snippet for pasting
// into externally authored campaigns.
func (h *Handlers) HandleGenerateSnippet(w http.ResponseWriter, r *http.Request) {
	var req generateSnippetRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	name := req.CampaignName
	if name == "" {
		name = "Manual Campaign"
	}

	id, snippet := h.encoder.Snippet()
	now := time.Now().UTC()

	msg := &domain.Message{
		ID:      id,
		ToEmail: "manual@campaign.com", // placeholder: snippet sends have no known recipient
		Subject: name,
		SentAt:  now,
		Metadata: domain.MessageMetadata{
			Campaign: name,
			Manual:   true,
			SentAt:   now.Format(time.RFC3339),
		},
	}
	if err := h.store.InsertMessage(r.Context(), msg); err != nil {
		httputil.InternalError(w, err)
		return
	}

	logger.Info("snippet generated", "message_id", id, "campaign", name)
	httputil.OK(w, generateSnippetResponse{
		Success:      true,
		Snippet:      snippet,
		MessageID:    id,
		CampaignName: name,
	})
}

// HandleHealth serves GET /health, including store reachability.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "connected"}
	if err := h.store.Ping(r.Context()); err != nil {
		resp["status"] = "error"
		resp["database"] = "disconnected"
	}
	httputil.OK(w, resp)
}

// HandleRoot serves GET /: a service descriptor for humans poking at the
// tracker's public host.
func (h *Handlers) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, map[string]any{
		"service": "Orbitl Email Tracker",
		"status":  "operational",
		"endpoints": map[string]string{
			"health": "/health",
			"stats":  "/api/stats",
			"pixel":  "/pixel?m=MESSAGE_ID&sig=SIGNATURE",
			"click":  "/click?m=MESSAGE_ID&l=LINK_INDEX&sig=SIGNATURE",
		},
	})
}
