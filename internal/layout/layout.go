// Package layout composes the dynamic bottom area of the terminal from
// a set of registered components, each deciding its own visibility from
// the current chat state. The mediator is the single registration
// point: the event loop feeds it state snapshots and it renders the
// visible components top to bottom with blank-line separators.
package layout

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"

	"mogzi/internal/statemachine"
)

// Suggestion is one row of the autocomplete or selection list.
type Suggestion struct {
	Label       string
	Description string
}

// Context is the render snapshot every component reads. It must be
// value-copied by the caller on the event loop; components never
// mutate it.
type Context struct {
	State      statemachine.ChatState
	HasHistory bool

	InputText string
	CursorPos int

	Suggestions        []Suggestion
	SelectedSuggestion int
	ShowSuggestions    bool
	SelectionActive    bool

	ToolLabel string
	StartedAt time.Time

	ProfileName  string
	ModelName    string
	SpinnerFrame string
}

// Component is one renderable region of the dynamic area.
type Component interface {
	Name() string
	Visible(ctx Context) bool
	Render(ctx Context, st Styles) string
}

// Mediator owns the component registry and the spinner animation.
type Mediator struct {
	components []Component
	styles     Styles

	spin      spinner.Spinner
	frame     int
	lastFrame time.Time
}

// New builds an empty Mediator with default styles and the Dot spinner
// frame set.
func New() *Mediator {
	return &Mediator{
		styles: DefaultStyles(),
		spin:   spinner.Dot,
	}
}

// Default builds a Mediator with the standard component stack
// registered: welcome, input line, suggestion list, progress, footer.
func Default() *Mediator {
	m := New()
	m.Register(welcomeComponent{})
	m.Register(inputComponent{})
	m.Register(suggestionsComponent{})
	m.Register(progressComponent{})
	m.Register(footerComponent{})
	return m
}

// Register appends c to the composition order.
func (m *Mediator) Register(c Component) {
	m.components = append(m.components, c)
}

// Tick advances the spinner animation when enough time has elapsed for
// the next frame. Called from the render timer.
func (m *Mediator) Tick(now time.Time) {
	if now.Sub(m.lastFrame) < m.spin.FPS {
		return
	}
	m.lastFrame = now
	m.frame = (m.frame + 1) % len(m.spin.Frames)
}

// RenderDynamic composes the visible components for ctx, separated by
// blank lines.
func (m *Mediator) RenderDynamic(ctx Context) string {
	ctx.SpinnerFrame = m.spin.Frames[m.frame]

	var parts []string
	for _, c := range m.components {
		if !c.Visible(ctx) {
			continue
		}
		if r := c.Render(ctx, m.styles); r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "\n\n")
}

// welcomeComponent shows the banner until the first message exists.
type welcomeComponent struct{}

func (welcomeComponent) Name() string { return "welcome" }

func (welcomeComponent) Visible(ctx Context) bool {
	return ctx.State == statemachine.Input && !ctx.HasHistory
}

func (welcomeComponent) Render(ctx Context, st Styles) string {
	return st.Welcome.Render("mogzi") + "\n" +
		st.Dim.Render("type a message, /help for commands, @ to reference files")
}

// inputComponent renders the prompt line with a block cursor.
type inputComponent struct{}

func (inputComponent) Name() string { return "input" }

func (inputComponent) Visible(ctx Context) bool {
	return ctx.State == statemachine.Input
}

func (inputComponent) Render(ctx Context, st Styles) string {
	runes := []rune(ctx.InputText)
	cur := ctx.CursorPos
	if cur > len(runes) {
		cur = len(runes)
	}

	var b strings.Builder
	b.WriteString(st.Prompt.Render("> "))
	b.WriteString(string(runes[:cur]))
	if cur < len(runes) {
		b.WriteString(st.Cursor.Render(string(runes[cur])))
		b.WriteString(string(runes[cur+1:]))
	} else {
		b.WriteString(st.Cursor.Render(" "))
	}
	return b.String()
}

const maxVisibleSuggestions = 8

// suggestionsComponent renders the autocomplete or selection list with
// the highlighted row inverted.
type suggestionsComponent struct{}

func (suggestionsComponent) Name() string { return "suggestions" }

func (suggestionsComponent) Visible(ctx Context) bool {
	return ctx.State == statemachine.Input && ctx.ShowSuggestions && len(ctx.Suggestions) > 0
}

func (suggestionsComponent) Render(ctx Context, st Styles) string {
	items := ctx.Suggestions
	selected := ctx.SelectedSuggestion

	// Scroll the window so the selected row stays visible.
	start := 0
	if selected >= maxVisibleSuggestions {
		start = selected - maxVisibleSuggestions + 1
	}
	end := start + maxVisibleSuggestions
	if end > len(items) {
		end = len(items)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		label := items[i].Label
		if i == selected {
			b.WriteString(st.Selected.Render(label))
		} else {
			b.WriteString(label)
		}
		if items[i].Description != "" {
			b.WriteString("  ")
			b.WriteString(st.Dim.Render(items[i].Description))
		}
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	if end < len(items) {
		fmt.Fprintf(&b, "\n%s", st.Dim.Render(fmt.Sprintf("... and %d more", len(items)-end)))
	}
	return b.String()
}

// progressComponent renders the thinking/tool-execution line.
type progressComponent struct{}

func (progressComponent) Name() string { return "progress" }

func (progressComponent) Visible(ctx Context) bool {
	return ctx.State == statemachine.Thinking || ctx.State == statemachine.ToolExecution
}

func (progressComponent) Render(ctx Context, st Styles) string {
	elapsed := int(time.Since(ctx.StartedAt).Seconds())
	if ctx.StartedAt.IsZero() || elapsed < 0 {
		elapsed = 0
	}

	spin := st.Highlight.Render(ctx.SpinnerFrame)
	switch ctx.State {
	case statemachine.ToolExecution:
		label := ctx.ToolLabel
		if label == "" {
			label = "running tool"
		}
		return fmt.Sprintf("%s %s %s", spin, label, st.Dim.Render("(esc to cancel)"))
	default:
		return fmt.Sprintf("%s Thinking… %s", spin, st.Dim.Render(fmt.Sprintf("(%ds · esc to cancel)", elapsed)))
	}
}

// footerComponent renders the always-on status line.
type footerComponent struct{}

func (footerComponent) Name() string { return "footer" }

func (footerComponent) Visible(ctx Context) bool { return true }

func (footerComponent) Render(ctx Context, st Styles) string {
	left := ctx.ProfileName
	if ctx.ModelName != "" {
		if left != "" {
			left += " · "
		}
		left += ctx.ModelName
	}
	if left == "" {
		left = "mogzi"
	}
	return st.Footer.Render(left + "  ·  ctrl+c to quit")
}
