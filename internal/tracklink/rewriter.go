package tracklink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Source is an author-supplied email body plus its outbound links, before
// tracking is injected. The body references links positionally with
// {{link0}}, {{link1}}, ... tokens; index = position in Links.
type Source struct {
	ID       string   // assigned if empty
	Links    []string // destination URLs in the order they appear
	HTMLBody string
}

// Rewritten is the trackable form of a Source. Links holds the finalized
// index → destination map exactly as it must be persisted with the message:
// the click endpoint resolves redirects against it.
type Rewritten struct {
	ID    string
	HTML  string
	Links map[string]string
}

const defaultBody = "<p>Open this message.</p>"

// pixelTag renders the hidden 1x1 open-tracking image. Empty alt and the
// max-height/max-width clamp keep clients that ignore display:none from
// showing a stray box.
func pixelTag(pixelURL string) string {
	return fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none;max-height:1px;max-width:1px" alt="" />`, pixelURL)
}

// Rewrite substitutes every {{linkN}} placeholder with a signed click URL
// and appends the tracking pixel. It performs no network or storage I/O:
// persisting the returned message is the caller's job.
func (e *Encoder) Rewrite(src Source) Rewritten {
	id := src.ID
	if id == "" {
		id = uuid.New().String()
	}

	html := src.HTMLBody
	if html == "" {
		html = defaultBody
	}

	links := make(map[string]string, len(src.Links))
	for i, dest := range src.Links {
		links[strconv.Itoa(i)] = dest
		placeholder := fmt.Sprintf("{{link%d}}", i)
		html = strings.ReplaceAll(html, placeholder, e.ClickURL(id, i))
	}

	html += "\n" + pixelTag(e.PixelURL(id))

	return Rewritten{ID: id, HTML: html, Links: links}
}

// Snippet returns a pixel-only tracking snippet for pasting into externally
// authored email HTML, along with the message ID it tracks.
func (e *Encoder) Snippet() (messageID, snippet string) {
	id := uuid.New().String()
	return id, pixelTag(e.PixelURL(id))
}
