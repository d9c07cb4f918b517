package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// openCodeRequest is the request body for POST /chat/completions.
// Stream is serialized without omitempty so stream:false round-trips.
type openCodeRequest struct {
	Model         string             `json:"model"`
	Messages      []chatMessage      `json:"messages"`
	Tools         []chatToolParam    `json:"tools,omitempty"`
	Temperature   float32            `json:"temperature,omitempty"`
	Stream        bool               `json:"stream"`
	StreamOptions *chatStreamOptions `json:"stream_options,omitempty"`
}

// OpenCodeProvider is a generic adapter for OpenAI-compatible chat
// completion endpoints, sharing the SSE plumbing in openai_common.go
// rather than any single vendor's SDK.
type OpenCodeProvider struct {
	name        string
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	model       string
	temperature float64
}

// NewOpenCode creates a new generic OpenAI-compatible provider.
func NewOpenCode(endpoint, model, apiKey string) *OpenCodeProvider {
	return NewOpenCodeWithTemp("opencode", endpoint, model, apiKey, 0.7)
}

func NewOpenCodeWithTemp(name string, endpoint, model, apiKey string, temperature float64) *OpenCodeProvider {
	return &OpenCodeProvider{
		name:        name,
		baseURL:     strings.TrimRight(endpoint, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{},
		model:       model,
		temperature: temperature,
	}
}

func (p *OpenCodeProvider) Name() string { return p.name }

// ChatStream sends messages with optional tools and returns a channel of
// streaming events, in the OpenAI Chat Completions SSE format.
func (p *OpenCodeProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := openCodeRequest{
		Model:         p.model,
		Messages:      mergeSystemMessages(toChatMessages(messages)),
		Tools:         toChatTools(tools),
		Temperature:   float32(p.temperature),
		Stream:        true,
		StreamOptions: &chatStreamOptions{IncludeUsage: true},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	reader, err := httpDoSSE(ctx, httpRequestConfig{
		client:   p.httpClient,
		url:      p.baseURL + "/chat/completions",
		body:     body,
		headers:  p.authHeaders(),
		provider: p.name,
		model:    p.model,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer reader.Close()
		parseSSEStream(ctx, reader, ch)
	}()

	return ch, nil
}

// ListModels queries the OpenAI-compatible /models endpoint.
func (p *OpenCodeProvider) ListModels(ctx context.Context) ([]Model, error) {
	return listOpenAIModels(ctx, p.httpClient, p.baseURL, p.authHeaders())
}

func (p *OpenCodeProvider) authHeaders() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

// Close closes idle HTTP connections.
func (p *OpenCodeProvider) Close() error {
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}
