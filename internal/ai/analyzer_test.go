package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avion00/buy2rent-vendormail/internal/model"
)

func testIssue() model.Issue {
	return model.Issue{
		ID:          "3f2a1b4c-5d6e-4f70-8a9b-0c1d2e3f4a5b",
		VendorName:  "Acme Supplies",
		VendorEmail: "support@acme.example",
		IssueType:   "damaged product",
		Description: "Two chairs arrived with broken legs.",
	}
}

// newFakeAPI serves canned Claude responses and records the request.
func newFakeAPI(t *testing.T, responseText string) (*Client, *http.Request) {
	t.Helper()

	var captured http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		resp := apiResponse{
			ID:   "msg_test",
			Type: "message",
			Role: "assistant",
			Content: []apiContentBlock{
				{Type: "text", Text: responseText},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	c := NewClient(model.AIConfig{
		APIKey:   "test-key",
		TeamName: "Procurement Team",
	})
	c.baseURL = server.URL
	return c, &captured
}

func TestAnalyze(t *testing.T) {
	c, req := newFakeAPI(t, `Here is my analysis:
{"sentiment": "positive", "intent": "offers replacement", "suggested_action": "accept"}`)

	analysis, err := c.Analyze(context.Background(), testIssue(),
		"We can ship replacements on Monday.")
	require.NoError(t, err)
	assert.Equal(t, "positive", analysis.Sentiment)
	assert.Equal(t, "offers replacement", analysis.Intent)
	assert.Equal(t, "accept", analysis.SuggestedAction)

	assert.Equal(t, "test-key", req.Header.Get("x-api-key"))
	assert.Equal(t, apiVersion, req.Header.Get("anthropic-version"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestDraftReply(t *testing.T) {
	c, _ := newFakeAPI(t,
		`{"subject": "Re: Damaged delivery", "body": "Dear Acme, thank you.", "confidence": 0.82}`)

	draft, err := c.DraftReply(context.Background(), testIssue(),
		"We can ship replacements.", Analysis{Sentiment: "positive"})
	require.NoError(t, err)
	assert.Equal(t, "Re: Damaged delivery", draft.Subject)
	assert.Equal(t, "Dear Acme, thank you.", draft.Body)
	assert.InDelta(t, 0.82, draft.Confidence, 1e-9)
}

func TestDraftRejectsEmptyBody(t *testing.T) {
	c, _ := newFakeAPI(t, `{"subject": "Re: hi", "body": "  ", "confidence": 0.5}`)

	_, err := c.ComposeInitial(context.Background(), testIssue())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty body")
}

func TestCompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "rate limited"}}`))
	}))
	defer server.Close()

	c := NewClient(model.AIConfig{APIKey: "test-key"})
	c.baseURL = server.URL

	_, err := c.Analyze(context.Background(), testIssue(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDecodeJSONBlock(t *testing.T) {
	var draft Draft
	err := decodeJSONBlock(
		"Sure, here is the draft:\n```json\n"+
			`{"subject": "s", "body": "b", "confidence": 0.7}`+"\n```\nLet me know!",
		&draft,
	)
	require.NoError(t, err)
	assert.Equal(t, "s", draft.Subject)
	assert.Equal(t, "b", draft.Body)

	err = decodeJSONBlock("no json here at all", &draft)
	require.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(model.AIConfig{APIKey: "k"})
	assert.Equal(t, defaultModel, c.modelName)
	assert.Equal(t, defaultMaxTokens, c.maxTokens)
	assert.Equal(t, "Procurement Team", c.teamName)
	assert.Equal(t, apiURL, c.baseURL)
}
