package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/rs/zerolog/log"

	"mogzi/internal/config"
	"mogzi/internal/diffmodel"
	"mogzi/internal/history"
	"mogzi/internal/inputmodel"
	"mogzi/internal/provider"
	"mogzi/internal/scrollback"
	"mogzi/internal/sessionstore"
	"mogzi/internal/slashcmd"
	"mogzi/internal/statemachine"
	"mogzi/internal/toolcache"
	"mogzi/internal/tools"
)

var (
	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e05561"))
	diffHunkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e6e6e"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#932e2e"))
)

// Mode names the CLI's run mode.
type Mode string

const (
	ModeChat    Mode = "chat"
	ModeOneshot Mode = "oneshot"
)

// Orchestrator drives one session's conversation: it owns the state
// machine, the history manager, the provider stream, and the tool
// dispatch table, and is what internal/engine drives from the event
// loop.
type Orchestrator struct {
	Provider     provider.Provider
	History      *history.Manager
	Store        *sessionstore.Store
	StateMachine *statemachine.Machine
	Input        *inputmodel.Model
	Terminal     *scrollback.Terminal
	Commands     *slashcmd.Processor
	ToolCtx      tools.Context
	Shell        *tools.Shell
	Scratchpad   *Scratchpad
	ToolsCfg     config.ToolsConfig
	SessionCfg   config.SessionConfig
	ProfileName  string
	Mode         Mode

	toolSpecs []toolSpec
	cancel    context.CancelFunc

	ctx          context.Context
	cancelOuter  context.CancelFunc
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds an Orchestrator rooted at outerCtx: outerCtx bounds every
// AI stream this session ever starts, and is itself cancelled by
// Shutdown (Ctrl+C / /exit / /quit). workingDir and toolsCfg configure
// the tool suite; store/sess back the history manager.
func New(outerCtx context.Context, prov provider.Provider, store *sessionstore.Store, sess sessionstore.Session, workingDir string, toolsCfg config.ToolsConfig, sessionCfg config.SessionConfig, profileName string, mode Mode, term *scrollback.Terminal, cache *toolcache.Cache) *Orchestrator {
	toolCtx := tools.NewContext(workingDir, toolsCfg, cache)
	shell := tools.NewShell()

	ctx, cancelOuter := context.WithCancel(outerCtx)

	o := &Orchestrator{
		Provider:    prov,
		History:     history.NewManager(store, sess),
		Store:       store,
		Terminal:    term,
		Commands:    slashcmd.New(),
		ToolCtx:     toolCtx,
		Shell:       shell,
		Scratchpad:  &Scratchpad{},
		ToolsCfg:    toolsCfg,
		SessionCfg:  sessionCfg,
		ProfileName: profileName,
		Mode:        mode,
		ctx:         ctx,
		cancelOuter: cancelOuter,
		shutdown:    make(chan struct{}),
	}
	o.toolSpecs = buildToolSpecs(toolCtx, shell, o.Scratchpad)
	slashcmd.Register(o.Commands)

	o.Input = inputmodel.New(
		inputmodel.NewSlashCommandProvider(toCommandSpecs(o.Commands.Catalog())),
		inputmodel.NewFilePathProvider(workingDir),
	)

	o.StateMachine = statemachine.New(&statemachine.Context{
		Input:   inputAdapter{o.Input},
		History: historyAdapter{o},
		RequestSubmit: func(text string) bool {
			go o.SubmitInput(o.ctx, text)
			return true
		},
		RequestCancel: func() {
			if o.cancel != nil {
				o.cancel()
			}
		},
		RequestShutdown: o.Shutdown,
		Dispatch: func(key statemachine.Key) bool {
			if key == statemachine.KeyCtrlL {
				o.History.Clear()
				o.Terminal.Clear()
				return true
			}
			return false
		},
	})
	return o
}

func toCommandSpecs(specs []slashcmd.Spec) []inputmodel.CommandSpec {
	out := make([]inputmodel.CommandSpec, len(specs))
	for i, s := range specs {
		out[i] = inputmodel.CommandSpec{Name: s.Name, Description: s.Description}
	}
	return out
}

// Shutdown cancels every outstanding AI operation and signals Done,
// idempotently (Ctrl+C, /exit, /quit may all race to call it).
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		o.cancelOuter()
		close(o.shutdown)
	})
}

// Done reports when the orchestrator has been asked to shut down, for
// internal/engine's event loop to exit on.
func (o *Orchestrator) Done() <-chan struct{} { return o.shutdown }

// historyAdapter narrows the orchestrator for the state machine's
// HistoryModel; it goes through the orchestrator rather than capturing
// the manager because /session commands swap the manager out.
type historyAdapter struct{ o *Orchestrator }

func (h historyAdapter) IsEmpty() bool { return h.o.History.IsEmpty() }

// inputAdapter maps the input model onto the state machine's narrowed
// view of it, converting the state tag between the two packages' enums.
type inputAdapter struct{ m *inputmodel.Model }

func (a inputAdapter) State() statemachine.InputState {
	switch a.m.State() {
	case inputmodel.Autocomplete:
		return statemachine.InputAutocomplete
	case inputmodel.UserSelection:
		return statemachine.InputUserSelection
	default:
		return statemachine.InputNormal
	}
}

func (a inputAdapter) CurrentInput() string   { return a.m.CurrentInput() }
func (a inputAdapter) InsertRune(r rune)      { a.m.InsertRune(r) }
func (a inputAdapter) Backspace()             { a.m.Backspace() }
func (a inputAdapter) Delete()                { a.m.Delete() }
func (a inputAdapter) MoveLeft()              { a.m.MoveLeft() }
func (a inputAdapter) MoveRight()             { a.m.MoveRight() }
func (a inputAdapter) Home()                  { a.m.Home() }
func (a inputAdapter) End()                   { a.m.End() }
func (a inputAdapter) ClearInput()            { a.m.ClearInput() }
func (a inputAdapter) CycleSuggestion(d int)  { a.m.CycleSuggestion(d) }
func (a inputAdapter) AcceptSuggestion()      { a.m.AcceptSuggestion() }
func (a inputAdapter) CancelCompletion()      { a.m.CancelCompletion() }
func (a inputAdapter) Submit() (string, bool) { return a.m.Submit() }
func (a inputAdapter) HistoryUp()             { a.m.HistoryUp() }
func (a inputAdapter) HistoryDown()           { a.m.HistoryDown() }

// environmentPreamble builds the per-turn block appended to the user's
// message for AI consumption only: date, OS, shell, username,
// hostname, working directory, mode and tool-approvals.
func (o *Orchestrator) environmentPreamble() string {
	u, _ := user.Current()
	username := "unknown"
	if u != nil {
		username = u.Username
	}
	host, _ := os.Hostname()
	wd := o.ToolCtx.WorkingDir
	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	approvals := "all"
	if o.ToolsCfg.ReadOnly() {
		approvals = "readonly"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n\n<environment>\n")
	fmt.Fprintf(&b, "date: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "os: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "shell: %s\n", shellPath)
	fmt.Fprintf(&b, "username: %s\n", username)
	fmt.Fprintf(&b, "hostname: %s\n", host)
	fmt.Fprintf(&b, "working_directory: %s\n", wd)
	fmt.Fprintf(&b, "mode: %s\n", o.Mode)
	fmt.Fprintf(&b, "tool_approvals: %s\n", approvals)
	fmt.Fprintf(&b, "</environment>")
	return b.String()
}

// CommandContext builds the closures slashcmd needs, bound to this
// orchestrator's concrete state.
func (o *Orchestrator) CommandContext(onInstallSelection func(items []slashcmd.SessionSummary, onSelect func(id string))) *slashcmd.CommandContext {
	return &slashcmd.CommandContext{
		RenderPanel: func(title, body string) {
			o.Terminal.WriteStatic(renderPanel(title, body), false)
		},
		ProfileSummary: func() string {
			approvals := "all"
			if o.ToolsCfg.ReadOnly() {
				approvals = "readonly"
			}
			return fmt.Sprintf("profile: %s\nprovider: %s\nmode: %s\ntool_approvals: %s",
				o.ProfileName, o.Provider.Name(), o.Mode, approvals)
		},
		ListSessions: func(limit int) []slashcmd.SessionSummary {
			if limit <= 0 {
				limit = o.SessionCfg.ListLimitOrDefault()
			}
			summaries, err := o.Store.List(limit)
			if err != nil {
				log.Warn().Err(err).Msg("failed to list sessions")
				return nil
			}
			out := make([]slashcmd.SessionSummary, 0, len(summaries))
			for _, s := range summaries {
				out = append(out, slashcmd.SessionSummary{ID: s.ID, Name: s.Name})
			}
			return out
		},
		InstallSelection: onInstallSelection,
		LoadSession: func(idOrName string) error {
			sess, err := o.Store.Load(idOrName)
			if err != nil {
				return err
			}
			o.History.Close()
			o.History = history.NewManager(o.Store, sess)
			return nil
		},
		ClearSessionHistory: func() error {
			sess, err := o.Store.ClearHistory(o.History.Session())
			if err != nil {
				return err
			}
			o.History.Close()
			o.History = history.NewManager(o.Store, sess)
			return nil
		},
		RenameSession: func(newName string) error {
			sess, err := o.Store.Rename(o.History.Session(), newName)
			if err != nil {
				return err
			}
			o.History.Close()
			o.History = history.NewManager(o.Store, sess)
			return nil
		},
		ClearTranscript: func() {
			o.History.Clear()
			o.Terminal.Clear()
		},
		RequestShutdown: o.Shutdown,
		Catalog: func() []slashcmd.Spec {
			return o.Commands.Catalog()
		},
	}
}

// sessionListProvider drives `/session list`'s UserSelection state:
// each item's label is the session id, navigated with Up/Down and
// accepted with Enter/Tab, which invokes onSelect with the highlighted
// id.
type sessionListProvider struct {
	items    []slashcmd.SessionSummary
	onSelect func(id string)
}

func (p *sessionListProvider) Selections() []inputmodel.CompletionItem {
	out := make([]inputmodel.CompletionItem, len(p.items))
	for i, it := range p.items {
		out[i] = inputmodel.CompletionItem{Label: it.ID, Description: it.Name}
	}
	return out
}

func (p *sessionListProvider) OnSelection(text string) {
	if p.onSelect != nil {
		p.onSelect(text)
	}
}

// sessionListPanelBody renders a preview table for /session list. It
// does not truncate items; it adds a "... and N more" banner only when
// total exceeds len(items).
func sessionListPanelBody(items []slashcmd.SessionSummary, total int) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s — %s\n", it.ID, it.Name)
	}
	if total > len(items) {
		fmt.Fprintf(&b, "... and %d more\n", total-len(items))
	}
	return b.String()
}

func renderPanel(title, body string) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00E5CC"))
	return titleStyle.Render(title) + "\n" + body
}

// renderDisplayDiff formats a unified diff for terminal display,
// coloring added/removed lines and dimming hunk headers.
func renderDisplayDiff(d *diffmodel.UnifiedDiff) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	for _, h := range d.Hunks {
		b.WriteString(diffHunkStyle.Render(fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OriginalStart, h.OriginalLength, h.ModifiedStart, h.ModifiedLength)))
		b.WriteString("\n")
		for _, l := range h.Lines {
			switch l.Kind {
			case diffmodel.Added:
				b.WriteString(diffAddStyle.Render("+" + l.Content))
			case diffmodel.Removed:
				b.WriteString(diffDelStyle.Render("-" + l.Content))
			default:
				b.WriteString(" " + l.Content)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
