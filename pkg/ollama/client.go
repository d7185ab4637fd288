// Package ollama is a VisionClient backed by an Ollama server.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultTimeout bounds a query whose context has no deadline. Vision models on CPU are slow.
const DefaultTimeout = 5 * time.Minute

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	options map[string]any
}

// NewClient creates a client for the server at ollamaURL. Any path in the URL
// (e.g. /api/chat) is ignored. A nil httpClient uses http.DefaultClient.
func NewClient(ollamaURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: scheme and host required", ollamaURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{client: api.NewClient(base, httpClient)}, nil
}

// SetOptions sets model options such as temperature or num_ctx.
func (c *Client) SetOptions(options map[string]any) {
	c.options = options
}

// Complete sends prompt and image in one non-streaming chat turn.
func (c *Client) Complete(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	msg := api.Message{Role: "user", Content: prompt}
	if imgB64 != "" {
		img, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		msg.Images = []api.ImageData{api.ImageData(img)}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Options:  c.optionsFor(model),
	}

	var answer strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}
	return answer.String(), nil
}

// optionsFor returns the configured options, with tuned sampling for MiniCPM-V 4.x when none are set.
func (c *Client) optionsFor(model string) map[string]any {
	if c.options != nil {
		return c.options
	}
	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		return map[string]any{"temperature": 0.7, "top_p": 0.8, "num_ctx": 4096}
	}
	return nil
}
