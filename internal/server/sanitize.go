package server

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// sanitizeComment strips markup from user text, NFC-normalises it and
// trims surrounding whitespace. The policy escapes entities, which are
// decoded again since comments are stored as plain text.
func sanitizeComment(p *bluemonday.Policy, text string) string {
	text = html.UnescapeString(p.Sanitize(text))
	return strings.TrimSpace(norm.NFC.String(text))
}
