package provider

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func collectEvents(t *testing.T, sse string) []StreamEvent {
	t.Helper()
	ch := make(chan StreamEvent, 32)
	go func() {
		defer close(ch)
		parseSSEStream(context.Background(), strings.NewReader(sse), ch)
	}()
	var out []StreamEvent
	for evt := range ch {
		out = append(out, evt)
	}
	return out
}

func TestParseSSEStream(t *testing.T) {
	sse := `data: {"choices":[{"delta":{"content":"Hel"}}]}

data: {"choices":[{"delta":{"content":"lo"}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"read_text_file"}}]}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"absolute_path\":\"/x\"}"}}]}}]}

data: {"usage":{"prompt_tokens":9,"completion_tokens":4},"choices":[]}

data: [DONE]
`
	events := collectEvents(t, sse)

	var content strings.Builder
	var begins, deltas, usage, done int
	for _, evt := range events {
		switch evt.Type {
		case EventContentDelta:
			content.WriteString(evt.Content)
		case EventToolCallBegin:
			begins++
			if evt.ToolCallID != "c1" || evt.ToolCallName != "read_text_file" {
				t.Fatalf("begin event: %+v", evt)
			}
		case EventToolCallDelta:
			deltas++
		case EventUsage:
			usage++
			if evt.InputTokens != 9 || evt.OutputTokens != 4 {
				t.Fatalf("usage event: %+v", evt)
			}
		case EventDone:
			done++
		}
	}
	if content.String() != "Hello" {
		t.Fatalf("content: %q", content.String())
	}
	if begins != 1 || deltas != 1 || usage != 1 || done != 1 {
		t.Fatalf("event counts: begins=%d deltas=%d usage=%d done=%d", begins, deltas, usage, done)
	}
}

func TestParseSSEStreamEndsWithDoneOnEOF(t *testing.T) {
	events := collectEvents(t, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n")
	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("expected trailing Done, got %v", last.Type)
	}
}

func TestMergeSystemMessages(t *testing.T) {
	msgs := []chatMessage{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "more rules"},
		{Role: "assistant", Content: "hello"},
	}
	merged := mergeSystemMessages(msgs)
	if len(merged) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(merged))
	}
	if merged[0].Role != "system" || merged[0].Content != "rules\n\nmore rules" {
		t.Fatalf("merged system: %+v", merged[0])
	}
	if merged[1].Role != "user" || merged[2].Role != "assistant" {
		t.Fatal("conversation order lost")
	}
}

func TestToChatMessagesCarriesToolFields(t *testing.T) {
	msgs := toChatMessages([]Message{
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{"path":"."}`)}}},
		{Role: "tool", Content: "<tool_response/>", ToolCallID: "c1"},
	})
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].Function.Name != "ls" {
		t.Fatalf("tool calls lost: %+v", msgs[0])
	}
	if msgs[1].ToolCallID != "c1" {
		t.Fatalf("tool call id lost: %+v", msgs[1])
	}
}

func TestToChatToolsDefaultsEmptyParameters(t *testing.T) {
	tools := toChatTools([]Tool{{Name: "bare"}})
	if string(tools[0].Function.Parameters) != `{"type":"object","properties":{}}` {
		t.Fatalf("default params: %s", tools[0].Function.Parameters)
	}
	if toChatTools(nil) != nil {
		t.Fatal("nil tools should stay nil")
	}
}
