// Package gemini is a thin client for the Gemini REST API. It covers the
// three operations the backend needs: one-shot generation, multi-turn chat,
// and token counting.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior exchange entry passed as chat context.
type Turn struct {
	Role    string // "user" or "model"
	Content string
}

// Reply is the text of a model response plus the token usage the API reported
// for the call.
type Reply struct {
	Text  string
	Usage *UsageMetadata
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
	TotalTokenCount      int `json:"totalTokenCount,omitempty"`
}

type Client struct {
	client *resty.Client
	model  string
}

func NewClient(apiKey, model string) *Client {
	return newClient(apiKey, model, defaultBaseURL)
}

func newClient(apiKey, model, baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("x-goog-api-key", apiKey),
		model: model,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	CandidateCount int     `json:"candidateCount"`
	Temperature    float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata"`
}

type countTokensRequest struct {
	Contents []content `json:"contents"`
}

type countTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// Generate produces a single completion for the given prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (Reply, error) {
	req := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{CandidateCount: 1, Temperature: 1.0},
	}

	var resp generateResponse
	if err := c.post(ctx, "generateContent", req, &resp); err != nil {
		return Reply{}, err
	}

	return resp.reply(), nil
}

// Chat sends the new user message with the prior turns as context. Roles in
// the history must already be "user" or "model".
func (c *Client) Chat(ctx context.Context, history []Turn, message string) (Reply, error) {
	contents := make([]content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, content{Role: turn.Role, Parts: []part{{Text: turn.Content}}})
	}
	contents = append(contents, content{Role: RoleUser, Parts: []part{{Text: message}}})

	var resp generateResponse
	if err := c.post(ctx, "generateContent", generateRequest{Contents: contents}, &resp); err != nil {
		return Reply{}, err
	}

	return resp.reply(), nil
}

// CountTokens returns the number of tokens the model would consume for the
// given text.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	req := countTokensRequest{Contents: []content{{Parts: []part{{Text: text}}}}}

	var resp countTokensResponse
	if err := c.post(ctx, "countTokens", req, &resp); err != nil {
		return 0, err
	}

	return resp.TotalTokens, nil
}

func (c *Client) post(ctx context.Context, op string, body, out any) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		Post(fmt.Sprintf("/models/%s:%s", c.model, op))

	if err != nil {
		return fmt.Errorf("gemini %s request failed: %w", op, err)
	}

	if !res.IsSuccess() {
		slog.Error("gemini returned error", "op", op, "status_code", res.StatusCode(), "body", res.String())
		return fmt.Errorf("gemini %s returned status %d", op, res.StatusCode())
	}

	return nil
}

// The API may split a candidate across multiple parts; like the web client we
// only consume the first one.
func (r generateResponse) reply() Reply {
	out := Reply{Usage: r.UsageMetadata}
	if len(r.Candidates) > 0 && len(r.Candidates[0].Content.Parts) > 0 {
		out.Text = r.Candidates[0].Content.Parts[0].Text
	}
	return out
}
