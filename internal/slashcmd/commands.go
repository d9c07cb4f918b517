package slashcmd

import "fmt"

// SessionSummary is the compact session listing shape a command
// context exposes, mirroring sessionstore.SessionSummary without this
// package importing internal/sessionstore.
type SessionSummary struct {
	ID   string
	Name string
}

// CommandContext is the concrete value internal/orchestrator passes as
// Handler's ctx, a small set of closures over the orchestrator's real
// state (session store, history manager, scrollback terminal,
// cancellation) so this package stays decoupled from those concrete
// types.
type CommandContext struct {
	RenderPanel        func(title, body string)
	ProfileSummary     func() string
	ListSessions       func(limit int) []SessionSummary
	InstallSelection   func(items []SessionSummary, onSelect func(id string))
	LoadSession        func(idOrName string) error
	ClearSessionHistory func() error
	RenameSession      func(newName string) error
	ClearTranscript    func()
	RequestShutdown    func()
	Catalog            func() []Spec
}

// Register installs the full command table.
func Register(p *Processor) {
	p.Register(Spec{Name: "help", Description: "show available commands", Handler: handleHelp})
	p.Register(Spec{Name: "exit", Description: "quit mogzi", Handler: handleExit})
	p.Register(Spec{Name: "quit", Description: "quit mogzi", Handler: handleExit})
	p.Register(Spec{Name: "clear", Description: "clear the current transcript", Handler: handleClear})
	p.Register(Spec{Name: "status", Description: "show profile, provider, mode and tool-approval status (no model name)", Handler: handleStatus})
	p.Register(Spec{Name: "session", Description: "manage sessions: list | clear | rename <name>", Handler: handleSession})
}

func ctxOf(raw any) (*CommandContext, error) {
	cc, ok := raw.(*CommandContext)
	if !ok {
		return nil, fmt.Errorf("slashcmd: handler invoked without a *CommandContext")
	}
	return cc, nil
}

func handleHelp(raw any, _ string) (Result, error) {
	cc, err := ctxOf(raw)
	if err != nil {
		return Result{}, err
	}
	var body string
	for _, c := range cc.Catalog() {
		body += fmt.Sprintf("/%s — %s\n", c.Name, c.Description)
	}
	cc.RenderPanel("Help", body)
	return Result{}, nil
}

func handleExit(raw any, _ string) (Result, error) {
	cc, err := ctxOf(raw)
	if err != nil {
		return Result{}, err
	}
	cc.RequestShutdown()
	return Result{Output: "exiting"}, nil
}

func handleClear(raw any, _ string) (Result, error) {
	cc, err := ctxOf(raw)
	if err != nil {
		return Result{}, err
	}
	cc.ClearTranscript()
	return Result{Output: "transcript cleared"}, nil
}

func handleStatus(raw any, _ string) (Result, error) {
	cc, err := ctxOf(raw)
	if err != nil {
		return Result{}, err
	}
	summary := cc.ProfileSummary()
	cc.RenderPanel("Status", summary)
	return Result{}, nil
}

func handleSession(raw any, args string) (Result, error) {
	cc, err := ctxOf(raw)
	if err != nil {
		return Result{}, err
	}

	var sub, rest string
	if idx := indexByte(args, ' '); idx != -1 {
		sub, rest = args[:idx], args[idx+1:]
	} else {
		sub = args
	}

	switch sub {
	case "list":
		summaries := cc.ListSessions(0)
		cc.InstallSelection(summaries, func(id string) {
			_ = cc.LoadSession(id)
		})
		return Result{Output: "select a session"}, nil
	case "clear":
		if err := cc.ClearSessionHistory(); err != nil {
			return Result{}, err
		}
		return Result{Output: "session history cleared"}, nil
	case "rename":
		if rest == "" {
			return Result{}, fmt.Errorf("usage: /session rename <new-name>")
		}
		if err := cc.RenameSession(rest); err != nil {
			return Result{}, err
		}
		return Result{Output: "session renamed to " + rest}, nil
	default:
		return Result{}, fmt.Errorf("usage: /session list | clear | rename <new-name>")
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
