package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
	"github.com/orbitl/email-tracker/internal/store"
)

// Recorder accepts engagement events without blocking the caller. The HTTP
// response to a mail client is already committed (or about to be) when
// these are called; implementations run the actual write on an execution
// context of their own and report failures to logs only.
type Recorder interface {
	RecordOpen(e domain.OpenEvent)
	RecordClick(e domain.ClickEvent)

	// Wait blocks until every accepted event has been handed off or
	// written. Called during shutdown to avoid dropping tail events.
	Wait()
}

const writeTimeout = 5 * time.Second

// StoreRecorder writes events straight to the store, one detached goroutine
// per event with its own timeout. A slow or failing store never delays a
// tracking response.
type StoreRecorder struct {
	store store.Store
	wg    sync.WaitGroup
}

// NewStoreRecorder creates a recorder writing directly to the given store.
func NewStoreRecorder(s store.Store) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) RecordOpen(e domain.OpenEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.store.InsertOpen(ctx, &e); err != nil {
			logger.Error("record open failed", "message_id", e.MessageID, "error", err)
		}
	}()
}

func (r *StoreRecorder) RecordClick(e domain.ClickEvent) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := r.store.InsertClick(ctx, &e); err != nil {
			logger.Error("record click failed", "message_id", e.MessageID, "error", err)
		}
	}()
}

func (r *StoreRecorder) Wait() { r.wg.Wait() }
