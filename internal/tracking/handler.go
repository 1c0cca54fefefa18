package tracking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orbitl/email-tracker/internal/domain"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
	"github.com/orbitl/email-tracker/internal/signer"
	"github.com/orbitl/email-tracker/internal/store"
	"github.com/orbitl/email-tracker/internal/tracklink"
)

// Config parameterizes the public tracking endpoints.
type Config struct {
	// PixelFormat selects the pixel payload: "gif" (default) or "png".
	PixelFormat string
	// DefaultRedirect receives clicks whose link index is unknown. A
	// broken redirect loses the recipient, so out-of-range indexes fall
	// back here instead of failing.
	DefaultRedirect string
	// LookupTimeout bounds the click path's message lookup. Zero means 3s.
	LookupTimeout time.Duration
}

// Handler serves the two public tracking endpoints. The pixel path must
// never visibly fail once the signature checks out, and neither path may
// wait on the event write.
type Handler struct {
	signer          *signer.Signer
	store           store.Store
	rec             Recorder
	pixel           Pixel
	defaultRedirect string
	lookupTimeout   time.Duration
}

// NewHandler creates a tracking handler. The store is only consulted on the
// click path; the pixel path records opens without any lookup so that an
// open still counts when the message row is not yet committed or was purged.
func NewHandler(sg *signer.Signer, st store.Store, rec Recorder, cfg Config) *Handler {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Handler{
		signer:          sg,
		store:           st,
		rec:             rec,
		pixel:           PixelFor(cfg.PixelFormat),
		defaultRedirect: cfg.DefaultRedirect,
		lookupTimeout:   timeout,
	}
}

// HandlePixel serves GET /pixel?m=<id>&sig=<hex>.
//
// Invalid requests get a bare 400 with no body: the pixel is fetched by
// software, not people, and explaining failures would only feed an oracle
// for the signing scheme.
func (h *Handler) HandlePixel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, sig := q.Get("m"), q.Get("sig")

	if m == "" || sig == "" || !h.signer.Verify(tracklink.PixelCanonical(m), sig) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.rec.RecordOpen(domain.OpenEvent{
		ID:        uuid.New().String(),
		MessageID: m,
		OpenedAt:  time.Now().UTC(),
		IP:        realIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})

	logger.Debug("open tracked", "message_id", m)
	h.servePixel(w)
}

// HandleClick serves GET /click?m=<id>&l=<index>&sig=<hex>.
//
// Unlike the pixel path this is user-facing navigation, so failures carry a
// short text body. The message lookup is on the critical path (the redirect
// depends on it) and is bounded by LookupTimeout; a timed-out lookup is
// treated as not found rather than masking the outage behind the default
// destination.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m, l, sig := q.Get("m"), q.Get("l"), q.Get("sig")

	// A bad signature gets the same response as a malformed request: the
	// handler must not reveal which check failed.
	if m == "" || l == "" || sig == "" || !h.signer.Verify(tracklink.ClickCanonical(m, l), sig) {
		http.Error(w, "Invalid tracking link", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.lookupTimeout)
	defer cancel()

	msg, err := h.store.GetMessage(ctx, m)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	case err != nil:
		logger.Error("click lookup failed", "message_id", m, "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	dest, ok := msg.Metadata.Link(l)
	if !ok {
		dest = h.defaultRedirect
	}

	h.rec.RecordClick(domain.ClickEvent{
		ID:        uuid.New().String(),
		MessageID: m,
		URL:       dest,
		ClickedAt: time.Now().UTC(),
		IP:        realIP(r),
		UserAgent: r.UserAgent(),
	})

	logger.Debug("click tracked", "message_id", m, "link", l, "url", dest)
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	// No caching: a cached pixel would swallow repeat opens.
	w.Header().Set("Content-Type", h.pixel.ContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(h.pixel.Body)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
