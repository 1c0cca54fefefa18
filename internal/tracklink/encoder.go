// Package tracklink builds the signed tracking URLs embedded in outbound
// email HTML: the open pixel and per-link click redirects. It also rewrites
// author-supplied HTML to use them.
package tracklink

import (
	"fmt"
	"strings"

	"github.com/orbitl/email-tracker/internal/signer"
)

// Encoder assembles public tracking URLs for a message. The canonical
// strings it signs are the contract with the tracking endpoints: changing
// their construction invalidates every link already sent.
type Encoder struct {
	base   string
	signer *signer.Signer
}

// NewEncoder creates an encoder rooted at the given public base URL.
func NewEncoder(baseURL string, s *signer.Signer) *Encoder {
	return &Encoder{base: strings.TrimRight(baseURL, "/"), signer: s}
}

// PixelCanonical returns the exact string signed for a pixel request.
func PixelCanonical(messageID string) string {
	return "m=" + messageID
}

// ClickCanonical returns the exact string signed for a click on link index l.
// The pipe delimiter is load-bearing: without it "m=A, l=1" and "m=A1, l="
// would concatenate to the same bytes, and a tag for l=1 could verify
// against l=10.
func ClickCanonical(messageID, linkIndex string) string {
	return "m=" + messageID + "|l=" + linkIndex
}

// PixelURL returns the absolute URL of the 1x1 open-tracking pixel.
func (e *Encoder) PixelURL(messageID string) string {
	sig := e.signer.Sign(PixelCanonical(messageID))
	return fmt.Sprintf("%s/pixel?m=%s&sig=%s", e.base, messageID, sig)
}

// ClickURL returns the absolute redirect URL for link index i of a message.
func (e *Encoder) ClickURL(messageID string, i int) string {
	idx := fmt.Sprintf("%d", i)
	sig := e.signer.Sign(ClickCanonical(messageID, idx))
	return fmt.Sprintf("%s/click?m=%s&l=%s&sig=%s", e.base, messageID, idx, sig)
}
