// Package memory provides a mutex-guarded in-memory store.Store used by
// unit tests and local development. Semantics match store/postgres:
// messages immutable, events append-only, list ordering by timestamp
// descending.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/store"
)

// Store is an in-memory store.Store implementation.
type Store struct {
	mu       sync.Mutex
	messages map[string]domain.Message
	opens    []domain.OpenEvent
	clicks   []domain.ClickEvent

	// FailWrites forces all inserts to fail. Tests use it to prove the
	// pixel path never surfaces storage errors to the mail client.
	FailWrites error
	// FailReads forces all selects to fail.
	FailReads error
}

// New creates an empty store.
func New() *Store {
	return &Store{messages: make(map[string]domain.Message)}
}

func (s *Store) InsertMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.messages[m.ID] = *m
	return nil
}

func (s *Store) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := m
	return &cp, nil
}

func (s *Store) ListMessages(_ context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	out := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (s *Store) InsertOpen(_ context.Context, e *domain.OpenEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.opens = append(s.opens, *e)
	return nil
}

func (s *Store) InsertClick(_ context.Context, e *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.clicks = append(s.clicks, *e)
	return nil
}

func (s *Store) ListOpens(_ context.Context, messageID string) ([]domain.OpenEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []domain.OpenEvent
	for _, e := range s.opens {
		if e.MessageID == messageID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out, nil
}

func (s *Store) ListClicks(_ context.Context, messageID string) ([]domain.ClickEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	var out []domain.ClickEvent
	for _, e := range s.clicks {
		if e.MessageID == messageID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClickedAt.After(out[j].ClickedAt) })
	return out, nil
}

func (s *Store) CountOpens(ctx context.Context, messageID string) (int, error) {
	opens, err := s.ListOpens(ctx, messageID)
	return len(opens), err
}

func (s *Store) CountClicks(ctx context.Context, messageID string) (int, error) {
	clicks, err := s.ListClicks(ctx, messageID)
	return len(clicks), err
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FailReads
}
