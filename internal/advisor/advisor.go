// Package advisor is a thin client for a generative language API that
// answers short medication questions ("what can I take instead of X").
// Answers are informational; the client never writes household data.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("advisor API key not configured")

const systemInstruction = `Role: You are a helpful pocket pharmacist.
RULES:
1. Keep answers UNDER 60 WORDS.
2. Use bullet points for readability.
3. Be direct and friendly.
4. Only add a "consult doctor" warning if strictly necessary.`

// Turn is one prior exchange in a conversation. Role is "user" or "bot".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Config holds advisor configuration from environment variables.
type Config struct {
	APIKey string
	Model  string
}

// Client talks to the generative language API.
type Client struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewClient creates an advisor client. An empty API key leaves the client
// in an unconfigured state where Ask returns ErrNotConfigured.
func NewClient(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends the user's question with prior conversation turns and returns
// the advisor's answer. Transient transport failures are retried once.
func (c *Client) Ask(ctx context.Context, question string, history []Turn) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	req := generateRequest{Contents: c.buildContents(question, history)}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var answer string
	backoff := retry.WithMaxRetries(1, retry.NewConstant(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		a, err := c.generate(ctx, body)
		if err != nil {
			return retry.RetryableError(err)
		}
		answer = a
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// buildContents maps the conversation onto the API's role scheme. A bot
// greeting at position zero is dropped; the API rejects a leading model
// turn.
func (c *Client) buildContents(question string, history []Turn) []content {
	var contents []content
	for i, turn := range history {
		if i == 0 && turn.Role == "bot" {
			continue
		}
		role := "user"
		if turn.Role == "bot" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: turn.Text}}})
	}
	contents = append(contents, content{
		Role:  "user",
		Parts: []part{{Text: fmt.Sprintf("%s\n\nUser Question: %s", systemInstruction, question)}},
	})
	return contents
}

func (c *Client) generate(ctx context.Context, body []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("advisor API request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode advisor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return "", fmt.Errorf("advisor API returned status %d: %s", resp.StatusCode, msg)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("advisor API returned no candidates")
	}
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}
