// Package stats turns raw open/click rows into the per-campaign dashboard
// view. Nothing here is persisted; every call recomputes from the store.
package stats

import (
	"context"
	"fmt"

	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/store"
)

// Aggregator computes campaign statistics on demand.
type Aggregator struct {
	store store.Store
}

// New creates an aggregator over the given store.
func New(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// openRate renders the dashboard's open-rate column.
//
// The formula is opens*100, NOT opens/sent*100: a message with 3 opens
// shows "300.0%". The dashboard has always displayed this count-based
// number and downstream consumers key on it; keep it until the product
// decides otherwise.
func openRate(opens int) string {
	return fmt.Sprintf("%.1f%%", float64(opens*100))
}

// ComputeStats builds the campaign list view: one entry per message in the
// store's descending send-time order, plus totals. A store with no messages
// yields zeroed totals and an empty (non-nil) campaign list.
func (a *Aggregator) ComputeStats(ctx context.Context) (*domain.StatsSummary, error) {
	messages, err := a.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	summary := &domain.StatsSummary{Campaigns: make([]domain.CampaignStats, 0, len(messages))}

	for _, m := range messages {
		opens, err := a.store.CountOpens(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("count opens for %s: %w", m.ID, err)
		}
		clicks, err := a.store.CountClicks(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("count clicks for %s: %w", m.ID, err)
		}

		subject := m.Subject
		if subject == "" {
			subject = "Unnamed Campaign"
		}

		summary.Campaigns = append(summary.Campaigns, domain.CampaignStats{
			ID:       m.ID,
			Subject:  subject,
			SentAt:   m.SentAt,
			Opens:    opens,
			Clicks:   clicks,
			OpenRate: openRate(opens),
		})
		summary.TotalOpens += opens
		summary.TotalClicks += clicks
	}

	summary.TotalCampaigns = len(summary.Campaigns)
	return summary, nil
}
