package correlate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssueID = "3f2a1b4c-5d6e-4f70-8a9b-0c1d2e3f4a5b"

func TestEmbedStampsSubjectAndBody(t *testing.T) {
	subject, body := Embed(testIssueID, "Damaged delivery", "Hello,\n\nThe chairs arrived broken.")

	assert.Equal(t, "[Issue #3f2a1b4c-5d6e-4f70-8a9b-0c1d2e3f4a5b] Damaged delivery", subject)
	assert.Contains(t, body, "Hello,\n\nThe chairs arrived broken.")
	assert.Contains(t, body, "---\nReference: Issue #"+testIssueID)
	assert.Contains(t, body, "Please keep this reference in your reply.")
}

func TestEmbedExtractRoundTrip(t *testing.T) {
	subject, body := Embed(testIssueID, "Damaged delivery", "The chairs arrived broken.")

	id, ok := Extract(subject, body)
	require.True(t, ok)
	assert.Equal(t, testIssueID, id)

	// Either half alone still correlates.
	id, ok = Extract(subject, "")
	require.True(t, ok)
	assert.Equal(t, testIssueID, id)

	id, ok = Extract("Re: something else entirely", body)
	require.True(t, ok)
	assert.Equal(t, testIssueID, id)
}

func TestExtractForms(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{
			name:    "bracketed in subject",
			subject: "Re: [Issue #" + testIssueID + "] Damaged delivery",
		},
		{
			name:    "bracketed uppercase token",
			subject: "RE: [ISSUE #" + testIssueID + "] Damaged delivery",
		},
		{
			name: "prefixed with hash in body",
			body: "We looked into issue #" + testIssueID + " and will replace the order.",
		},
		{
			name: "prefixed with colon in body",
			body: "Regarding Issue: " + testIssueID + "\n\nA courier is on the way.",
		},
		{
			name: "slug form",
			body: "See thread issue-" + testIssueID + " for context.",
		},
		{
			name: "bare uuid in quoted footer",
			body: "Will do.\n\n> ---\n> Reference: " + testIssueID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Extract(tt.subject, tt.body)
			require.True(t, ok)
			assert.Equal(t, testIssueID, id)
		})
	}
}

func TestExtractNormalizesCase(t *testing.T) {
	id, ok := Extract("", "Issue #3F2A1B4C-5D6E-4F70-8A9B-0C1D2E3F4A5B")
	require.True(t, ok)
	assert.Equal(t, testIssueID, id)
}

func TestExtractPrefersSubject(t *testing.T) {
	otherID := "11111111-2222-4333-8444-555555555555"

	id, ok := Extract(
		"[Issue #"+testIssueID+"] Damaged delivery",
		"Unrelated mention of issue #"+otherID+" in the body.",
	)
	require.True(t, ok)
	assert.Equal(t, testIssueID, id)
}

func TestExtractNoMatch(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
	}{
		{name: "empty inputs"},
		{
			name:    "plain reply",
			subject: "Re: Damaged delivery",
			body:    "We will send replacements tomorrow.",
		},
		{
			name: "malformed uuid",
			body: "issue #3f2a1b4c-5d6e-4f70-8a9b-0c1d2e3f4a5", // one hex digit short
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Extract(tt.subject, tt.body)
			assert.False(t, ok)
			assert.Empty(t, id)
		})
	}
}
