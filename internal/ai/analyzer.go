// Package ai is the reply-analysis boundary: a Claude-backed service that
// judges vendor replies and drafts candidate responses. Callers treat it
// as a black box with a confidence score; a failure here must never lose
// the vendor's message, so no draft is persisted when a call errors.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avion00/buy2rent-vendormail/internal/model"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"

	requestTimeout = 30 * time.Second
)

// Analysis is the structured judgement of a vendor reply.
type Analysis struct {
	Sentiment       string `json:"sentiment"`
	Intent          string `json:"intent"`
	SuggestedAction string `json:"suggested_action"`
}

// Draft is a candidate outbound email. Confidence is a 0..1 visibility
// hint for the human approver, never a gate.
type Draft struct {
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"`
}

// Analyzer is the analysis/drafting surface the monitor depends on.
type Analyzer interface {
	// Analyze judges a vendor's raw reply in the context of its issue.
	Analyze(ctx context.Context, issue model.Issue, vendorMessage string) (Analysis, error)

	// DraftReply produces a candidate reply to a vendor message. The
	// draft addresses the vendor by display name and signs off with the
	// configured team name.
	DraftReply(ctx context.Context, issue model.Issue, vendorMessage string, analysis Analysis) (Draft, error)

	// ComposeInitial produces the opening email for a freshly raised
	// issue, from issue context alone.
	ComposeInitial(ctx context.Context, issue model.Issue) (Draft, error)
}

// Client implements Analyzer against the Claude Messages API.
type Client struct {
	apiKey    string
	modelName string
	maxTokens int
	teamName  string
	baseURL   string
	client    *http.Client
}

// NewClient creates an analyzer client from the AI configuration.
func NewClient(cfg model.AIConfig) *Client {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	teamName := cfg.TeamName
	if teamName == "" {
		teamName = "Procurement Team"
	}

	return &Client{
		apiKey:    cfg.APIKey,
		modelName: modelName,
		maxTokens: maxTokens,
		teamName:  teamName,
		baseURL:   apiURL,
		client:    &http.Client{Timeout: requestTimeout},
	}
}

// Analyze implements Analyzer.
func (c *Client) Analyze(
	ctx context.Context, issue model.Issue, vendorMessage string,
) (Analysis, error) {
	prompt := fmt.Sprintf(
		"You are analyzing a vendor's email reply in a procurement "+
			"issue-resolution workflow.\n\n"+
			"Issue type: %s\nIssue description: %s\nVendor: %s\n\n"+
			"Vendor reply:\n%s\n\n"+
			"Respond with ONLY a JSON object, no other text:\n"+
			`{"sentiment": "positive|neutral|negative", `+
			`"intent": "<short phrase>", `+
			`"suggested_action": "<short phrase>"}`,
		issue.IssueType, issue.Description, issue.VendorName, vendorMessage,
	)

	text, err := c.complete(ctx, prompt)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyzing vendor reply: %w", err)
	}

	var analysis Analysis
	if err := decodeJSONBlock(text, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decoding analysis: %w", err)
	}

	return analysis, nil
}

// DraftReply implements Analyzer.
func (c *Client) DraftReply(
	ctx context.Context,
	issue model.Issue,
	vendorMessage string,
	analysis Analysis,
) (Draft, error) {
	prompt := fmt.Sprintf(
		"You are drafting a reply to a vendor in a procurement "+
			"issue-resolution workflow.\n\n"+
			"Issue type: %s\nIssue description: %s\n"+
			"Vendor name: %s\n\n"+
			"Vendor's message:\n%s\n\n"+
			"Analysis: sentiment=%s, intent=%s, suggested action=%s\n\n"+
			"Write a professional, concise reply. Address the vendor as "+
			"%q — never a generic placeholder like \"Dear Vendor\". "+
			"Sign off as %q.\n\n"+
			"Respond with ONLY a JSON object, no other text:\n"+
			`{"subject": "...", "body": "...", "confidence": 0.0}`+
			"\nwhere confidence is your 0..1 estimate that the reply is "+
			"appropriate to send as-is.",
		issue.IssueType, issue.Description,
		issue.VendorName,
		vendorMessage,
		analysis.Sentiment, analysis.Intent, analysis.SuggestedAction,
		issue.VendorName, c.teamName,
	)

	return c.draft(ctx, prompt)
}

// ComposeInitial implements Analyzer.
func (c *Client) ComposeInitial(
	ctx context.Context, issue model.Issue,
) (Draft, error) {
	prompt := fmt.Sprintf(
		"You are opening an email conversation with a vendor about a "+
			"procurement issue.\n\n"+
			"Issue type: %s\nIssue description: %s\nVendor name: %s\n\n"+
			"Write a professional, concise email describing the issue and "+
			"asking the vendor how they will resolve it. Address the "+
			"vendor as %q and sign off as %q.\n\n"+
			"Respond with ONLY a JSON object, no other text:\n"+
			`{"subject": "...", "body": "...", "confidence": 0.0}`,
		issue.IssueType, issue.Description, issue.VendorName,
		issue.VendorName, c.teamName,
	)

	return c.draft(ctx, prompt)
}

func (c *Client) draft(ctx context.Context, prompt string) (Draft, error) {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		return Draft{}, fmt.Errorf("drafting email: %w", err)
	}

	var draft Draft
	if err := decodeJSONBlock(text, &draft); err != nil {
		return Draft{}, fmt.Errorf("decoding draft: %w", err)
	}
	if strings.TrimSpace(draft.Body) == "" {
		return Draft{}, fmt.Errorf("drafting email: model returned an empty body")
	}

	return draft, nil
}

// complete makes a single request to the Claude Messages API and returns
// the concatenated text content of the response.
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model:     c.modelName,
		MaxTokens: c.maxTokens,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return strings.Join(parts, ""), nil
}

// decodeJSONBlock unmarshals the first top-level JSON object found in
// text. Models occasionally wrap their JSON in prose or code fences.
func decodeJSONBlock(text string, v interface{}) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model output")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
