// Package store defines the persistence contract for messages and
// engagement events. The tracker treats storage as an external
// collaborator: everything it needs is insert, select-all, and
// select-by-key over three collections, expressed here as typed methods.
//
// Implementations live in store/postgres (production) and store/memory
// (tests, local development) and must be safe for concurrent use. No method
// is transactional across collections; events are independent rows with
// caller-generated IDs, so there are no write-write conflicts to arbitrate.
package store

import (
	"context"
	"errors"

	"github.com/orbitl/email-tracker/internal/domain"
)

// ErrNotFound is returned by GetMessage when no row matches the ID.
var ErrNotFound = errors.New("message not found")

// Store is the data access contract consumed by the tracking handler, the
// stats aggregator, and the dashboard API.
type Store interface {
	// InsertMessage persists a new message. Messages are immutable once
	// written.
	InsertMessage(ctx context.Context, m *domain.Message) error

	// GetMessage returns a message by ID, or ErrNotFound.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// ListMessages returns all messages ordered by sent_at descending.
	// Callers rely on that ordering; do not re-sort.
	ListMessages(ctx context.Context) ([]domain.Message, error)

	// InsertOpen records one open event.
	InsertOpen(ctx context.Context, e *domain.OpenEvent) error

	// InsertClick records one click event.
	InsertClick(ctx context.Context, e *domain.ClickEvent) error

	// ListOpens returns a message's opens, most recent first.
	ListOpens(ctx context.Context, messageID string) ([]domain.OpenEvent, error)

	// ListClicks returns a message's clicks, most recent first.
	ListClicks(ctx context.Context, messageID string) ([]domain.ClickEvent, error)

	// CountOpens returns the number of opens for a message without
	// fetching rows.
	CountOpens(ctx context.Context, messageID string) (int, error)

	// CountClicks returns the number of clicks for a message without
	// fetching rows.
	CountClicks(ctx context.Context, messageID string) (int, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
