// Package nvidia wraps the NVIDIA-hosted chat-completions endpoint
// (OpenAI-compatible). One request per call, no retries, no streaming.
package nvidia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KiranTejz20005/masika/internal/config"
)

// ErrUpstream covers every failure of the completion call itself: transport
// errors, auth/quota rejections, non-2xx statuses, and malformed envelopes.
var ErrUpstream = errors.New("completion call failed")

// ErrNotJSON means the model replied, but the reply text is not valid JSON.
var ErrNotJSON = errors.New("model did not return valid JSON")

// Client issues requests against the configured completion endpoint.
type Client struct {
	cfg        config.NVIDIAConfig
	httpClient *http.Client
}

// NewClient creates a completion client. The client is safe for concurrent
// use and is constructed once at startup.
func NewClient(cfg config.NVIDIAConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Configured reports whether an upstream API key is set.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// CompleteJSON sends a single user prompt with the configured model
// parameters and parses the reply as a JSON object, stripping markdown code
// fences first. A parse failure returns ErrNotJSON wrapping the decode error.
func (c *Client) CompleteJSON(ctx context.Context, userPrompt string) (map[string]any, error) {
	text, err := c.complete(ctx, []Message{{Role: "user", Content: userPrompt}},
		c.cfg.Temperature, c.cfg.TopP, c.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	cleaned := stripFences(text)
	var reply map[string]any
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return reply, nil
}

// CompleteText sends a system+user message pair with explicit sampling
// parameters and returns the trimmed raw reply. An empty string with a nil
// error means the API returned no content.
func (c *Client) CompleteText(ctx context.Context, system, user string, temperature, topP float64, maxTokens int) (string, error) {
	msgs := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return c.complete(ctx, msgs, temperature, topP, maxTokens)
}

func (c *Client) complete(ctx context.Context, msgs []Message, temperature, topP float64, maxTokens int) (string, error) {
	payload := chatRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var envelope chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	if len(envelope.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(envelope.Choices[0].Message.Content), nil
}

// stripFences removes markdown code-fence markers that some models wrap
// around JSON output despite instructions not to.
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
