package openai

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

	"shipfee-agent/internal/domain"
	"shipfee-agent/internal/llm"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 10 * time.Second

	jsonOnlyInstruction = "Reply with a single JSON object and nothing else."
)

// completionRequest is the JSON-mode subset of the Chat Completions request.
type completionRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	Temperature    float64              `json:"temperature"`
	ResponseFormat responseFormat       `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// completionResponse keeps only what CompleteJSON reads.
type completionResponse struct {
	Choices []struct {
		Message      domain.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client completes prompts against an OpenAI-compatible Chat Completions
// endpoint with response_format json_object.
type Client struct {
	endpoint   string
	httpClient *http.Client
	key        *llm.APIKey
}

var _ llm.Completer = (*Client)(nil)

type Option func(*Client)

// WithBaseURL points the client at another OpenAI-compatible server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.endpoint = chatURL(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient reads the API key from <paramPrefix>/open-ai-token on the first
// completion.
func NewClient(ps llm.ParamGetter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		endpoint:   chatURL(defaultBaseURL),
		httpClient: &http.Client{Timeout: defaultTimeout},
		key:        llm.NewAPIKey(ps, paramPrefix+"/open-ai-token"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TokenParameterName is the parameter holding {"token": "..."}.
func (c *Client) TokenParameterName() string {
	return c.key.Name()
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// CompleteJSON sends prompt in JSON mode and decodes the answer with
// llm.ParseObject, so malformed content yields a salvaged object or the
// error marker rather than an error.
func (c *Client) CompleteJSON(ctx context.Context, prompt, model string) (map[string]any, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	apiKey, err := c.key.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	body, err := json.Marshal(completionRequest{
		Model: model,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: jsonOnlyInstruction},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	raw, err := c.post(ctx, apiKey, body)
	if err != nil {
		return nil, fmt.Errorf("openai: request failed: %w", err)
	}

	var payload completionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, errors.New("openai: no choices in response")
	}
	// A "length" finish still goes through ParseObject, which may salvage it.
	return llm.ParseObject(payload.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, apiKey string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: c.endpoint, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
