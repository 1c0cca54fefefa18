// Package postgres implements store.Store against PostgreSQL.
//
// Schema (see migrations/001_tracking.sql):
//
//	messages(id text pk, to_email text, subject text, sent_at timestamptz, metadata jsonb)
//	opens(id text pk, message_id text, opened_at timestamptz, ip text, ua text, referer text)
//	clicks(id text pk, message_id text, url text, clicked_at timestamptz, ip text, ua text)
//
// message_id is a weak reference: events are accepted for messages that are
// not (or no longer) present, so there is deliberately no foreign key.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/store"
)

// Store is a Postgres-backed store.Store.
type Store struct{ db *sql.DB }

// New creates a Postgres store over an open connection pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) InsertMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, to_email, subject, sent_at, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ToEmail, m.Subject, m.SentAt, meta)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	m := &domain.Message{}
	var meta []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, to_email, subject, sent_at, metadata
		FROM messages
		WHERE id = $1
	`, id).Scan(&m.ID, &m.ToEmail, &m.Subject, &m.SentAt, &meta)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, to_email, subject, sent_at, metadata
		FROM messages
		ORDER BY sent_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var meta []byte
		if err := rows.Scan(&m.ID, &m.ToEmail, &m.Subject, &m.SentAt, &meta); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) InsertOpen(ctx context.Context, e *domain.OpenEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO opens (id, message_id, opened_at, ip, ua, referer)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.MessageID, e.OpenedAt, e.IP, e.UserAgent, e.Referer)
	if err != nil {
		return fmt.Errorf("insert open: %w", err)
	}
	return nil
}

func (s *Store) InsertClick(ctx context.Context, e *domain.ClickEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clicks (id, message_id, url, clicked_at, ip, ua)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.MessageID, e.URL, e.ClickedAt, e.IP, e.UserAgent)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (s *Store) ListOpens(ctx context.Context, messageID string) ([]domain.OpenEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, opened_at, ip, ua, referer
		FROM opens
		WHERE message_id = $1
		ORDER BY opened_at DESC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list opens: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenEvent
	for rows.Next() {
		var e domain.OpenEvent
		if err := rows.Scan(&e.ID, &e.MessageID, &e.OpenedAt, &e.IP, &e.UserAgent, &e.Referer); err != nil {
			return nil, fmt.Errorf("scan open: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListClicks(ctx context.Context, messageID string) ([]domain.ClickEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, url, clicked_at, ip, ua
		FROM clicks
		WHERE message_id = $1
		ORDER BY clicked_at DESC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.ClickEvent
	for rows.Next() {
		var e domain.ClickEvent
		if err := rows.Scan(&e.ID, &e.MessageID, &e.URL, &e.ClickedAt, &e.IP, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountOpens(ctx context.Context, messageID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opens WHERE message_id = $1`, messageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count opens: %w", err)
	}
	return n, nil
}

func (s *Store) CountClicks(ctx context.Context, messageID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clicks WHERE message_id = $1`, messageID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
