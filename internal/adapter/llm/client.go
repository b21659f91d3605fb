// Package llm talks to OpenAI-compatible chat-completion and embedding
// endpoints (LM Studio locally, Groq hosted) and extracts structured
// text-to-SQL output from their responses.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hanehara/tsugite/internal/core/port"
)

// Config selects the provider endpoint and generation parameters.
type Config struct {
	BaseURL     string // e.g. "http://localhost:1234/v1" or "https://api.groq.com/openai/v1"
	APIKey      string // empty for local servers that require none
	Model       string
	EmbedModel  string // model for /embeddings; empty disables embedding calls
	Temperature float64
	TopP        float64
	Timeout     time.Duration
	MaxRetries  uint64
}

// Client is a minimal OpenAI-compatible HTTP client. It retries transient
// status classes (rate-limited, service-unavailable) with bounded
// exponential backoff and treats everything else as permanent.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	TopP           float64       `json:"top_p"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// sqlResponseSchema is the structured-output contract: exactly one SQL
// string plus optional assumptions.
var sqlResponseSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name": "text_to_sql",
		// strict mode increases refusals on some models; leave it off.
		"strict": false,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql":         map[string]any{"type": "string"},
				"assumptions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"required":             []string{"sql"},
			"additionalProperties": false,
		},
	},
}

const jsonOnlyReinforcement = "\n\nReturn ONLY a valid JSON object. No prose, no markdown, no code fences.\n" +
	`The JSON must contain key "sql" (string) and optional "assumptions" (array of strings).` + "\n" +
	"Do not include any other keys.\n"

// GenerateSQL asks the model to translate the prompt into SQL. It first
// requests json_schema structured output; providers that answer 400 with a
// json_schema complaint get a second attempt using json_object plus a
// strengthened system message.
func (c *Client) GenerateSQL(ctx context.Context, system, user string) (*port.Generation, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    c.cfg.Temperature,
		TopP:           c.cfg.TopP,
		ResponseFormat: sqlResponseSchema,
	}

	status, body, err := c.postJSON(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusBadRequest && strings.Contains(string(body), "json_schema") {
		c.logger.Debug("provider lacks json_schema support, falling back to json_object",
			slog.String("model", c.cfg.Model))
		req.Messages[0].Content = system + jsonOnlyReinforcement
		req.ResponseFormat = map[string]any{"type": "json_object"}
		status, body, err = c.postJSON(ctx, "/chat/completions", req)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("chat completion returned %d: %s", status, truncate(string(body), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	content := extractContent(parsed)
	if content == "" {
		return nil, fmt.Errorf("no content in chat response")
	}

	gen, ok := extractGeneration(content)
	if !ok {
		return nil, fmt.Errorf("chat content is not valid JSON or missing \"sql\"")
	}
	return gen, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text via /embeddings.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbedModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	status, body, err := c.postJSON(ctx, "/embeddings", embeddingRequest{
		Model: c.cfg.EmbedModel,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("embeddings returned %d: %s", status, truncate(string(body), 500))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings returned %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// postJSON sends one JSON POST with bounded exponential-backoff retry on
// transport errors and transient statuses (429/503/504). Any other status is
// returned to the caller for interpretation.
func (c *Client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var status int
	var body []byte

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		c.logger.Debug("llm request", slog.String("url", url), slog.String("model", c.cfg.Model))

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			c.logger.Warn("transient llm status, retrying", slog.Int("status", resp.StatusCode))
			return fmt.Errorf("transient status %d", resp.StatusCode)
		}

		status = resp.StatusCode
		body = b
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		return 0, nil, fmt.Errorf("posting to %s: %w", url, err)
	}
	return status, body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
