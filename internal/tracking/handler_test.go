package tracking

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/signer"
	"github.com/orbitl/email-tracker/internal/store/memory"
	"github.com/orbitl/email-tracker/internal/tracklink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncRecorder records into memory synchronously so tests can assert on
// events without racing the fire-and-forget path. StoreRecorder's async
// behavior is covered separately in recorder_test.go.
type syncRecorder struct {
	mu     sync.Mutex
	opens  []domain.OpenEvent
	clicks []domain.ClickEvent
}

func (r *syncRecorder) RecordOpen(e domain.OpenEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens = append(r.opens, e)
}

func (r *syncRecorder) RecordClick(e domain.ClickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, e)
}

func (r *syncRecorder) Wait() {}

func newTestHandler(t *testing.T) (*Handler, *memory.Store, *syncRecorder, *signer.Signer) {
	t.Helper()
	sg := signer.New("test-secret")
	st := memory.New()
	rec := &syncRecorder{}
	h := NewHandler(sg, st, rec, Config{
		PixelFormat:     "gif",
		DefaultRedirect: "https://orbitl.cc/",
	})
	return h, st, rec, sg
}

func pixelRequest(sg *signer.Signer, messageID string) *http.Request {
	sig := sg.Sign(tracklink.PixelCanonical(messageID))
	return httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/pixel?m=%s&sig=%s", messageID, sig), nil)
}

func clickRequest(sg *signer.Signer, messageID, l string) *http.Request {
	sig := sg.Sign(tracklink.ClickCanonical(messageID, l))
	return httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/click?m=%s&l=%s&sig=%s", messageID, l, sig), nil)
}

func seedMessage(t *testing.T, st *memory.Store, id string, links map[string]string) {
	t.Helper()
	err := st.InsertMessage(t.Context(), &domain.Message{
		ID:       id,
		Subject:  "Test",
		SentAt:   time.Now().UTC(),
		Metadata: domain.MessageMetadata{Links: links},
	})
	require.NoError(t, err)
}

func TestPixelSuccess(t *testing.T) {
	h, _, rec, sg := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandlePixel(w, pixelRequest(sg, "msg-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, pixelGIF, w.Body.Bytes())

	require.Len(t, rec.opens, 1)
	evt := rec.opens[0]
	assert.Equal(t, "msg-1", evt.MessageID)
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.OpenedAt.IsZero())
}

func TestPixelRejectsBadRequests(t *testing.T) {
	h, _, rec, sg := newTestHandler(t)

	cases := map[string]string{
		"missing m":     "/pixel?sig=deadbeef",
		"missing sig":   "/pixel?m=msg-1",
		"garbage sig":   "/pixel?m=msg-1&sig=zzzz",
		"wrong message": "/pixel?m=msg-2&sig=" + sg.Sign(tracklink.PixelCanonical("msg-1")),
		"click sig":     "/pixel?m=msg-1&sig=" + sg.Sign(tracklink.ClickCanonical("msg-1", "0")),
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandlePixel(w, httptest.NewRequest(http.MethodGet, target, nil))

			// Same bare response for every failure mode.
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Body.Bytes())
		})
	}
	assert.Empty(t, rec.opens, "no event on rejected requests")
}

func TestPixelEveryHitCounts(t *testing.T) {
	h, _, rec, sg := newTestHandler(t)

	// No deduplication: a recipient opening five times is five events.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.HandlePixel(w, pixelRequest(sg, "msg-1"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Len(t, rec.opens, 5)
}

func TestPixelIgnoresMissingMessage(t *testing.T) {
	h, _, rec, sg := newTestHandler(t)

	// msg-x was never stored; the open is recorded against the id anyway.
	w := httptest.NewRecorder()
	h.HandlePixel(w, pixelRequest(sg, "msg-x"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rec.opens, 1)
}

func TestPixelSurvivesStorageFailure(t *testing.T) {
	sg := signer.New("test-secret")
	st := memory.New()
	st.FailWrites = errors.New("store down")

	rec := NewStoreRecorder(st)
	h := NewHandler(sg, st, rec, Config{PixelFormat: "gif", DefaultRedirect: "https://orbitl.cc/"})

	w := httptest.NewRecorder()
	h.HandlePixel(w, pixelRequest(sg, "msg-1"))
	rec.Wait()

	// The image renders regardless of what the store did.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pixelGIF, w.Body.Bytes())
}

func TestPixelPNGFormat(t *testing.T) {
	sg := signer.New("test-secret")
	h := NewHandler(sg, memory.New(), &syncRecorder{}, Config{PixelFormat: "png"})

	w := httptest.NewRecorder()
	h.HandlePixel(w, pixelRequest(sg, "msg-1"))

	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pixelPNG, w.Body.Bytes())
}

func TestClickRedirectsAndRecords(t *testing.T) {
	h, st, rec, sg := newTestHandler(t)
	seedMessage(t, st, "msg-1", map[string]string{
		"0": "https://a.example",
		"1": "https://b.example",
	})

	w := httptest.NewRecorder()
	h.HandleClick(w, clickRequest(sg, "msg-1", "1"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://b.example", w.Header().Get("Location"))

	require.Len(t, rec.clicks, 1)
	evt := rec.clicks[0]
	assert.Equal(t, "msg-1", evt.MessageID)
	assert.Equal(t, "https://b.example", evt.URL)
}

func TestClickUnknownIndexFallsBack(t *testing.T) {
	h, st, rec, sg := newTestHandler(t)
	seedMessage(t, st, "msg-1", map[string]string{"0": "https://a.example"})

	w := httptest.NewRecorder()
	h.HandleClick(w, clickRequest(sg, "msg-1", "5"))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://orbitl.cc/", w.Header().Get("Location"))
	require.Len(t, rec.clicks, 1)
	assert.Equal(t, "https://orbitl.cc/", rec.clicks[0].URL)
}

func TestClickTextNumberKeyTolerance(t *testing.T) {
	h, st, rec, sg := newTestHandler(t)
	seedMessage(t, st, "msg-1", map[string]string{"7": "https://a.example"})

	// A link signed with a padded index still resolves to the stored key.
	w := httptest.NewRecorder()
	h.HandleClick(w, clickRequest(sg, "msg-1", "07"))
	assert.Equal(t, "https://a.example", w.Header().Get("Location"))
	require.Len(t, rec.clicks, 1)
}

func TestClickUnknownMessage(t *testing.T) {
	h, _, rec, sg := newTestHandler(t)

	w := httptest.NewRecorder()
	h.HandleClick(w, clickRequest(sg, "ghost", "0"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
	assert.Empty(t, rec.clicks, "no event when the redirect cannot proceed")
}

func TestClickRejectsBadRequests(t *testing.T) {
	h, st, rec, sg := newTestHandler(t)
	seedMessage(t, st, "msg-1", map[string]string{"0": "https://a.example"})

	goodSig := sg.Sign(tracklink.ClickCanonical("msg-1", "0"))
	cases := map[string]string{
		"missing m":   "/click?l=0&sig=" + goodSig,
		"missing l":   "/click?m=msg-1&sig=" + goodSig,
		"missing sig": "/click?m=msg-1&l=0",
		"wrong index": "/click?m=msg-1&l=1&sig=" + goodSig,
		"pixel sig":   "/click?m=msg-1&l=0&sig=" + sg.Sign(tracklink.PixelCanonical("msg-1")),
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleClick(w, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "Invalid tracking link")
		})
	}
	assert.Empty(t, rec.clicks)
}

func TestClickStoreFailureIs500(t *testing.T) {
	h, st, rec, sg := newTestHandler(t)
	st.FailReads = errors.New("connection refused")

	w := httptest.NewRecorder()
	h.HandleClick(w, clickRequest(sg, "msg-1", "0"))

	// A storage outage must not be masked as "unknown link".
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, rec.clicks)
}

func TestRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/pixel", nil)
	r.RemoteAddr = "192.0.2.1:5000"
	assert.Equal(t, "192.0.2.1", realIP(r))

	r.Header.Set("X-Real-Ip", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", realIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", realIP(r))
}
