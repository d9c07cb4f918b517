// Package provider defines the LLM provider interface and its HTTP
// adapters. The core consumes a Provider purely as a streaming source
// of typed update events; everything model- or vendor-specific stays
// behind this boundary.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrProviderNotFound is returned when a requested provider doesn't exist.
var ErrProviderNotFound = errors.New("provider not found")

// Message is one provider-agnostic conversation entry.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // assistant messages that requested tools
	ToolCallID string     // tool result messages: id of the answered call
}

// Tool declares a callable function to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StreamEventType identifies the kind of streaming event.
type StreamEventType int

const (
	// EventContentDelta carries a chunk of text content.
	EventContentDelta StreamEventType = iota
	// EventReasoningDelta carries a chunk of reasoning/thinking content.
	EventReasoningDelta
	// EventToolCallBegin signals the start of a new tool call with ID and name.
	EventToolCallBegin
	// EventToolCallDelta carries a chunk of tool call arguments.
	EventToolCallDelta
	// EventUsage carries token usage statistics.
	EventUsage
	// EventDone signals the stream is complete.
	EventDone
	// EventError signals a stream error.
	EventError
)

// StreamEvent is a single event in a streamed LLM response.
type StreamEvent struct {
	Type StreamEventType

	// Content or reasoning text delta (EventContentDelta, EventReasoningDelta).
	Content string

	// Tool call fields (EventToolCallBegin, EventToolCallDelta).
	ToolCallIndex int    // position of the call within the response
	ToolCallID    string // set on EventToolCallBegin
	ToolCallName  string // set on EventToolCallBegin
	ToolCallArgs  string // argument fragment on EventToolCallDelta

	// Token usage (EventUsage).
	InputTokens  int
	OutputTokens int

	// Error (EventError).
	Err error
}

// Model describes one model a provider can serve.
type Model struct {
	Name       string
	Size       int64
	Digest     string
	ModifiedAt time.Time
	Format     string
	Family     string
	ParamSize  string
	QuantLevel string
}

// Provider is the minimal contract the session engine needs from an
// LLM backend.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// ChatStream sends messages with optional tools and returns a channel of
	// streaming events. The channel is closed after EventDone or EventError.
	// Pass nil tools for plain chat without tool calling.
	ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error)

	// ListModels returns available models from the provider.
	ListModels(ctx context.Context) ([]Model, error)

	// Close closes idle HTTP connections and cleans up resources.
	Close() error
}

// Options holds generation settings a factory bakes into the providers
// it creates.
type Options struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
}

// Factory builds Provider instances for one configured endpoint.
type Factory interface {
	Name() string
	Create(model string, opts Options) Provider
}

// Registry holds the configured provider factories by name.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterFactory installs f under name, replacing any previous entry.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

// Create instantiates the named provider for model.
func (r *Registry) Create(name, model string, opts Options) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		log.Error().Str("name", name).Str("model", model).Msg("provider factory not found")
		return nil, ErrProviderNotFound
	}
	return f.Create(model, opts), nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
