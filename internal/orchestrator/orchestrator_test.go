package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mogzi/internal/config"
	"mogzi/internal/provider"
	"mogzi/internal/scrollback"
	"mogzi/internal/sessionstore"
	"mogzi/internal/statemachine"
)

// scriptedProvider returns one canned stream per ChatStream call, in
// order, so multi-round tool turns can be exercised.
type scriptedProvider struct {
	rounds [][]provider.StreamEvent
	calls  int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []provider.Message, tools []provider.Tool) (<-chan provider.StreamEvent, error) {
	if p.calls >= len(p.rounds) {
		return nil, fmt.Errorf("unexpected ChatStream call %d", p.calls)
	}
	events := p.rounds[p.calls]
	p.calls++

	ch := make(chan provider.StreamEvent, len(events)+1)
	for _, evt := range events {
		ch <- evt
	}
	ch <- provider.StreamEvent{Type: provider.EventDone}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}

func (p *scriptedProvider) Close() error { return nil }

func newTestOrchestrator(t *testing.T, prov provider.Provider) (*Orchestrator, *sessionstore.Store, *bytes.Buffer) {
	t.Helper()
	store, err := sessionstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sess, err := store.CreateNew()
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}

	var buf bytes.Buffer
	term := scrollback.New(&buf, 100)
	workDir := t.TempDir()

	o := New(context.Background(), prov, store, sess, workDir, config.ToolsConfig{}, config.SessionConfig{}, "test", ModeChat, term, nil)
	t.Cleanup(func() { o.History.Close() })
	return o, store, &buf
}

func TestSlashCommandsNeverReachTheProvider(t *testing.T) {
	prov := &scriptedProvider{} // any ChatStream call errors
	o, store, buf := newTestOrchestrator(t, prov)

	o.SubmitInput(context.Background(), "/session rename My New Session Name")

	if prov.calls != 0 {
		t.Fatal("slash command must not start an AI stream")
	}
	reloaded, err := store.Load(o.History.Session().ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Name != "My New Session Name" {
		t.Fatalf("rename not persisted: %q", reloaded.Name)
	}
	if !strings.Contains(buf.String(), "renamed") {
		t.Fatalf("expected confirmation in scrollback, got %q", buf.String())
	}
}

func TestSessionClearCommand(t *testing.T) {
	prov := &scriptedProvider{}
	o, store, buf := newTestOrchestrator(t, prov)
	o.History.AddUser("test message for clearing", nil)

	o.SubmitInput(context.Background(), "/session clear")

	reloaded, _ := store.Load(o.History.Session().ID)
	if len(reloaded.History) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(reloaded.History))
	}
	if !strings.Contains(buf.String(), "cleared") {
		t.Fatalf("expected confirmation containing 'cleared', got %q", buf.String())
	}
	if prov.calls != 0 {
		t.Fatal("no AI call expected")
	}
}

func TestUnknownSlashCommand(t *testing.T) {
	prov := &scriptedProvider{}
	o, _, buf := newTestOrchestrator(t, prov)

	o.SubmitInput(context.Background(), "/frobnicate")

	if !strings.Contains(buf.String(), "Unknown command: /frobnicate") {
		t.Fatalf("expected unknown-command notice, got %q", buf.String())
	}
	msgs := o.History.GetForDisplay()
	last := msgs[len(msgs)-1]
	if last.Role != sessionstore.RoleAssistant || !strings.Contains(last.Content, "Unknown command") {
		t.Fatalf("unexpected last message: %+v", last)
	}
}

func TestPlainTurnStreamsToHistory(t *testing.T) {
	prov := &scriptedProvider{rounds: [][]provider.StreamEvent{{
		{Type: provider.EventContentDelta, Content: "Hello "},
		{Type: provider.EventContentDelta, Content: "there."},
		{Type: provider.EventUsage, InputTokens: 11, OutputTokens: 3},
	}}}
	o, store, _ := newTestOrchestrator(t, prov)

	o.SubmitInput(context.Background(), "hi")

	if o.StateMachine.Current() != statemachine.Input {
		t.Fatalf("expected Input after stream completion, got %v", o.StateMachine.Current())
	}

	reloaded, _ := store.Load(o.History.Session().ID)
	if len(reloaded.History) != 2 {
		t.Fatalf("expected user+assistant, got %d", len(reloaded.History))
	}
	if reloaded.History[0].Content != "hi" {
		t.Fatalf("user message should be stored without the environment preamble: %q", reloaded.History[0].Content)
	}
	if reloaded.History[1].Content != "Hello there." {
		t.Fatalf("assistant content: %q", reloaded.History[1].Content)
	}
	if reloaded.UsageMetrics.InputTokens != 11 || reloaded.UsageMetrics.OutputTokens != 3 {
		t.Fatalf("usage not recorded: %+v", reloaded.UsageMetrics)
	}
}

func TestEnvironmentPreambleReachesProviderOnly(t *testing.T) {
	var seen []provider.Message
	prov := &capturingProvider{}
	o, _, _ := newTestOrchestrator(t, prov)

	o.SubmitInput(context.Background(), "what time is it")
	seen = prov.messages

	if len(seen) == 0 {
		t.Fatal("provider never saw the conversation")
	}
	last := seen[len(seen)-1]
	if !strings.Contains(last.Content, "<environment>") {
		t.Fatalf("expected environment preamble in provider copy, got %q", last.Content)
	}
	if !strings.HasPrefix(last.Content, "what time is it") {
		t.Fatalf("original text must lead the provider copy: %q", last.Content)
	}
}

type capturingProvider struct {
	messages []provider.Message
}

func (p *capturingProvider) Name() string { return "capturing" }

func (p *capturingProvider) ChatStream(ctx context.Context, messages []provider.Message, tools []provider.Tool) (<-chan provider.StreamEvent, error) {
	p.messages = messages
	ch := make(chan provider.StreamEvent, 2)
	ch <- provider.StreamEvent{Type: provider.EventContentDelta, Content: "ok"}
	ch <- provider.StreamEvent{Type: provider.EventDone}
	close(ch)
	return ch, nil
}

func (p *capturingProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}

func (p *capturingProvider) Close() error { return nil }

func TestToolRoundExecutesAndContinues(t *testing.T) {
	prov := &scriptedProvider{}
	o, store, buf := newTestOrchestrator(t, prov)

	target := filepath.Join(o.ToolCtx.WorkingDir, "note.txt")
	if err := os.WriteFile(target, []byte("tool payload\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]any{"absolute_path": target})
	prov.rounds = [][]provider.StreamEvent{
		{
			{Type: provider.EventToolCallBegin, ToolCallIndex: 0, ToolCallID: "call-1", ToolCallName: "read_text_file"},
			{Type: provider.EventToolCallDelta, ToolCallIndex: 0, ToolCallArgs: string(args)},
		},
		{
			{Type: provider.EventContentDelta, Content: "The file says: tool payload"},
		},
	}

	o.SubmitInput(context.Background(), "read my note")

	if prov.calls != 2 {
		t.Fatalf("expected a second round after tool execution, got %d", prov.calls)
	}
	reloaded, _ := store.Load(o.History.Session().ID)

	var toolMsgs, assistantMsgs int
	for _, m := range reloaded.History {
		switch m.Role {
		case sessionstore.RoleTool:
			toolMsgs++
			if !strings.Contains(m.Content, `tool_name="read_text_file"`) {
				t.Fatalf("tool message shape: %q", m.Content)
			}
		case sessionstore.RoleAssistant:
			assistantMsgs++
		}
	}
	if toolMsgs != 1 || assistantMsgs == 0 {
		t.Fatalf("expected 1 tool + assistant messages, got tool=%d assistant=%d", toolMsgs, assistantMsgs)
	}
	if o.StateMachine.Current() != statemachine.Input {
		t.Fatalf("expected Input at the end, got %v", o.StateMachine.Current())
	}
	_ = buf
}

func TestKeyArgSummary(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"command wins", `{"command":"ls -la","path":"/x"}`, "ls -la"},
		{"path fallback", `{"path":"/tmp/file.txt"}`, "/tmp/file.txt"},
		{"pattern fallback", `{"pattern":"needle"}`, "needle"},
		{"truncates long values", fmt.Sprintf(`{"command":%q}`, strings.Repeat("x", 40)), strings.Repeat("x", 25) + "…"},
		{"nothing informative", `{"other":42}`, ""},
		{"invalid json", `{nope`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := keyArgSummary(json.RawMessage(tt.args)); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsEditTool(t *testing.T) {
	for _, name := range []string{"replace", "edit_file", "editfile", "edit"} {
		if !isEditTool(name) {
			t.Errorf("%s should be an edit tool", name)
		}
	}
	if isEditTool("write_file") || isEditTool("read_text_file") {
		t.Error("non-edit tools misclassified")
	}
}

func TestPreviewLastLines(t *testing.T) {
	short := "a\nb\nc"
	if got := previewLastLines(short, 50); got != short {
		t.Fatalf("short content should pass through: %q", got)
	}

	var lines []string
	for i := 1; i <= 60; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	got := previewLastLines(strings.Join(lines, "\n"), 50)
	if !strings.HasPrefix(got, "(showing last 50 of 60 lines)") {
		t.Fatalf("missing banner: %q", got)
	}
	if !strings.Contains(got, "line 60") || strings.Contains(got, "line 5\n") {
		t.Fatalf("wrong window: %q", got)
	}
}

func TestContainsToolMarker(t *testing.T) {
	if !containsToolMarker(`prefix <tool_response tool_name="x">`) {
		t.Fatal("open marker not detected")
	}
	if !containsToolMarker("middle </tool_response> suffix") {
		t.Fatal("close marker not detected")
	}
	if containsToolMarker("plain prose about tools") {
		t.Fatal("false positive")
	}
}
