package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"shipfee-agent/internal/llm"
)

// generator is the minimal genai surface used by Client.
// *genai.Models satisfies this interface.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client completes prompts with Gemini in JSON mode. The API key is resolved
// on first use and the underlying genai client is reused once created; a
// failed setup is attempted again on a later call.
type Client struct {
	key          *llm.APIKey
	newGenerator func(ctx context.Context, apiKey string) (generator, error)

	mu  sync.Mutex
	gen generator
}

var _ llm.Completer = (*Client)(nil)

func NewClient(ps llm.ParamGetter, paramPrefix string) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	return &Client{
		key:          llm.NewAPIKey(ps, paramPrefix+"/google-api-key"),
		newGenerator: newGenAIGenerator,
	}, nil
}

// KeyParameterName is the parameter holding {"token": "..."}.
func (c *Client) KeyParameterName() string {
	return c.key.Name()
}

func newGenAIGenerator(ctx context.Context, apiKey string) (generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client.Models, nil
}

func (c *Client) resolveGenerator(ctx context.Context) (generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != nil {
		return c.gen, nil
	}
	key, err := c.key.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	gen, err := c.newGenerator(ctx, key)
	if err != nil {
		return nil, err
	}
	c.gen = gen
	return gen, nil
}

// CompleteJSON asks model for a JSON answer to prompt and decodes it with
// llm.ParseObject.
func (c *Client) CompleteJSON(ctx context.Context, prompt, model string) (map[string]any, error) {
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini: model must not be empty")
	}
	gen, err := c.resolveGenerator(ctx)
	if err != nil {
		return nil, err
	}

	temperature := float32(0)
	resp, err := gen.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return nil, errors.New("gemini: empty response")
	}
	return llm.ParseObject(text), nil
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
