package layout

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/exp/golden"

	"mogzi/internal/statemachine"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func visibleNames(m *Mediator, ctx Context) []string {
	var out []string
	for _, c := range m.components {
		if c.Visible(ctx) {
			out = append(out, c.Name())
		}
	}
	return out
}

func TestVisibilityByState(t *testing.T) {
	m := Default()

	tests := []struct {
		name string
		ctx  Context
		want []string
	}{
		{
			"input without history",
			Context{State: statemachine.Input},
			[]string{"welcome", "input", "footer"},
		},
		{
			"input with history",
			Context{State: statemachine.Input, HasHistory: true},
			[]string{"input", "footer"},
		},
		{
			"input with suggestions",
			Context{State: statemachine.Input, HasHistory: true, ShowSuggestions: true, Suggestions: []Suggestion{{Label: "/help"}}},
			[]string{"input", "suggestions", "footer"},
		},
		{
			"thinking",
			Context{State: statemachine.Thinking, HasHistory: true},
			[]string{"progress", "footer"},
		},
		{
			"tool execution",
			Context{State: statemachine.ToolExecution, HasHistory: true, ToolLabel: "run_shell_command → ls"},
			[]string{"progress", "footer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := visibleNames(m, tt.ctx)
			if len(got) != len(tt.want) {
				t.Fatalf("visible = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("visible = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestInputComponentCursor(t *testing.T) {
	var ic inputComponent
	st := DefaultStyles()

	t.Run("cursor mid-buffer highlights that rune", func(t *testing.T) {
		out := stripANSI(ic.Render(Context{State: statemachine.Input, InputText: "abc", CursorPos: 1}, st))
		if out != "> abc" {
			t.Fatalf("render: %q", out)
		}
	})

	t.Run("cursor at end appends a block", func(t *testing.T) {
		out := stripANSI(ic.Render(Context{State: statemachine.Input, InputText: "abc", CursorPos: 3}, st))
		if out != "> abc " {
			t.Fatalf("render: %q", out)
		}
	})
}

func TestSuggestionsWindowing(t *testing.T) {
	var sc suggestionsComponent
	st := DefaultStyles()

	items := make([]Suggestion, 12)
	for i := range items {
		items[i] = Suggestion{Label: string(rune('a' + i))}
	}

	out := stripANSI(sc.Render(Context{Suggestions: items, SelectedSuggestion: 0}, st))
	if strings.Count(out, "\n") != 8 {
		t.Fatalf("expected 8 visible rows plus overflow banner, got %q", out)
	}
	if !strings.Contains(out, "... and 4 more") {
		t.Fatalf("expected overflow banner, got %q", out)
	}

	// Selecting past the window scrolls it.
	out = stripANSI(sc.Render(Context{Suggestions: items, SelectedSuggestion: 11}, st))
	if !strings.Contains(out, "l") {
		t.Fatalf("selected row not visible: %q", out)
	}
}

func TestProgressLabels(t *testing.T) {
	var pc progressComponent
	st := DefaultStyles()
	started := time.Now()

	thinking := stripANSI(pc.Render(Context{State: statemachine.Thinking, StartedAt: started, SpinnerFrame: "*"}, st))
	if !strings.Contains(thinking, "Thinking…") || !strings.Contains(thinking, "esc to cancel") {
		t.Fatalf("thinking label: %q", thinking)
	}

	tool := stripANSI(pc.Render(Context{State: statemachine.ToolExecution, StartedAt: started, ToolLabel: "edit_file → main.go", SpinnerFrame: "*"}, st))
	if !strings.Contains(tool, "edit_file → main.go") {
		t.Fatalf("tool label: %q", tool)
	}
}

func TestRenderDynamicGolden(t *testing.T) {
	m := Default()
	out := m.RenderDynamic(Context{
		State:       statemachine.Input,
		InputText:   "hello",
		CursorPos:   5,
		ProfileName: "local",
		ModelName:   "qwen3:8b",
	})
	golden.RequireEqual(t, []byte(stripANSI(out)))
}

func TestTickAdvancesFrames(t *testing.T) {
	m := New()
	start := time.Now()
	first := m.frame
	m.Tick(start)
	m.Tick(start.Add(m.spin.FPS * 2))
	if m.frame == first {
		t.Fatal("expected the spinner frame to advance")
	}
}
