// Package correlate embeds and extracts the correlation identifier that
// ties a vendor email back to its originating issue. The subject token
// `[Issue #<uuid>]` and the body footer are a wire contract with threads
// already in vendors' mailboxes; the literal text must not change.
package correlate

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	subjectPrefixFormat = "[Issue #%s] %s"

	footerFormat = "\n\n---\nReference: Issue #%s\n" +
		"Please keep this reference in your reply."
)

// uuidPattern is the canonical 8-4-4-4-12 hex UUID form.
const uuidPattern = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

// Extraction patterns, tried in order. Mail clients mangle replies in
// different ways (quoting, signature stripping, HTML-to-text), so the
// identifier is looked for in several surviving shapes. Matching is
// case-insensitive throughout; captures are normalized to lowercase.
var (
	bracketedPattern = regexp.MustCompile(`(?i)\[issue\s*#(` + uuidPattern + `)\]`)
	prefixedPattern  = regexp.MustCompile(`(?i)issue\s*[#:]\s*(` + uuidPattern + `)`)
	slugPattern      = regexp.MustCompile(`(?i)issue-(` + uuidPattern + `)`)
	barePattern      = regexp.MustCompile(`(` + uuidPattern + `)`)
)

var extractionPatterns = []*regexp.Regexp{
	bracketedPattern,
	prefixedPattern,
	slugPattern,
	barePattern,
}

// Embed stamps the issue identifier into both the subject and the body.
// Both carry it so correlation survives either one being rewritten by the
// vendor's mail client. Pure function, no side effects.
func Embed(issueID, subject, body string) (string, string) {
	return fmt.Sprintf(subjectPrefixFormat, issueID, subject),
		body + fmt.Sprintf(footerFormat, issueID)
}

// Extract scans the subject first, then the body, for an embedded issue
// identifier. It returns the first match and true, or "" and false when
// no identifier survives in either place.
func Extract(subject, body string) (string, bool) {
	for _, text := range []string{subject, body} {
		if id, ok := extractFrom(text); ok {
			return id, true
		}
	}
	return "", false
}

func extractFrom(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, p := range extractionPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	return "", false
}
