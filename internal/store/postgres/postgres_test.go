package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestInsertMessageMarshalsMetadata(t *testing.T) {
	s, mock := newMockStore(t)

	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &domain.Message{
		ID:      "11111111-1111-1111-1111-111111111111",
		ToEmail: "manual@campaign.com",
		Subject: "Launch",
		SentAt:  sentAt,
		Metadata: domain.MessageMetadata{
			Campaign: "Launch",
			Links:    map[string]string{"0": "https://a.example"},
		},
	}

	mock.ExpectExec("INSERT INTO messages").
		WithArgs(m.ID, m.ToEmail, m.Subject, sentAt,
			[]byte(`{"campaign":"Launch","links":{"0":"https://a.example"}}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.InsertMessage(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMessageAssignsID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO messages").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &domain.Message{Subject: "x", SentAt: time.Now()}
	require.NoError(t, s.InsertMessage(context.Background(), m))
	assert.NotEmpty(t, m.ID)
}

func TestGetMessage(t *testing.T) {
	s, mock := newMockStore(t)

	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "to_email", "subject", "sent_at", "metadata"}).
		AddRow("m1", "a@example.com", "Hello", sentAt,
			[]byte(`{"campaign":"Hello","links":{"0":"https://a.example","1":"https://b.example"}}`))

	mock.ExpectQuery("SELECT id, to_email, subject, sent_at, metadata\\s+FROM messages").
		WithArgs("m1").
		WillReturnRows(rows)

	m, err := s.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", m.Subject)
	assert.Equal(t, "https://b.example", m.Metadata.Links["1"])
}

func TestGetMessageNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM messages").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "to_email", "subject", "sent_at", "metadata"}))

	_, err := s.GetMessage(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsertOpen(t *testing.T) {
	s, mock := newMockStore(t)

	openedAt := time.Now().UTC()
	e := &domain.OpenEvent{
		ID:        "o1",
		MessageID: "m1",
		OpenedAt:  openedAt,
		IP:        "203.0.113.9",
		UserAgent: "Thunderbird",
		Referer:   "",
	}

	mock.ExpectExec("INSERT INTO opens").
		WithArgs("o1", "m1", openedAt, "203.0.113.9", "Thunderbird", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.InsertOpen(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertClick(t *testing.T) {
	s, mock := newMockStore(t)

	clickedAt := time.Now().UTC()
	e := &domain.ClickEvent{
		ID:        "c1",
		MessageID: "m1",
		URL:       "https://a.example",
		ClickedAt: clickedAt,
		IP:        "203.0.113.9",
		UserAgent: "Safari",
	}

	mock.ExpectExec("INSERT INTO clicks").
		WithArgs("c1", "m1", "https://a.example", clickedAt, "203.0.113.9", "Safari").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.InsertClick(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM opens").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM clicks").
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	opens, err := s.CountOpens(context.Background(), "m1")
	require.NoError(t, err)
	clicks, err := s.CountClicks(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, 3, opens)
	assert.Equal(t, 2, clicks)
}

func TestListMessagesOrderedQuery(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "to_email", "subject", "sent_at", "metadata"}).
		AddRow("m2", "", "Newer", now, []byte(`{}`)).
		AddRow("m1", "", "Older", now.Add(-time.Hour), []byte(`{}`))

	mock.ExpectQuery("FROM messages\\s+ORDER BY sent_at DESC").
		WillReturnRows(rows)

	msgs, err := s.ListMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Store ordering is passed through untouched.
	assert.Equal(t, "Newer", msgs[0].Subject)
	assert.Equal(t, "Older", msgs[1].Subject)
}
