// Package statemachine implements the chat state machine: the outer
// Input/Thinking/ToolExecution tagged union and its transitions, with
// per-state key/character/render behavior dispatched on the variant
// rather than through an inheritance hierarchy.
package statemachine

// ChatState names the outer mode the event loop is in.
type ChatState int

const (
	Input ChatState = iota
	Thinking
	ToolExecution
)

func (s ChatState) String() string {
	switch s {
	case Input:
		return "Input"
	case Thinking:
		return "Thinking"
	case ToolExecution:
		return "ToolExecution"
	default:
		return "Unknown"
	}
}

// InputState is the nested mode of the Input state's own input model
// (mirrors inputmodel.State so this package doesn't need to import
// inputmodel just to expose it as a union tag).
type InputState int

const (
	InputNormal InputState = iota
	InputAutocomplete
	InputUserSelection
)

// Key identifies a non-printable key event dispatched by the keyboard
// ingest worker.
type Key int

const (
	KeyUnknown Key = iota
	KeyEsc
	KeyEnter
	KeyTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyBackspace
	KeyDelete
	KeyCtrlC
	KeyCtrlL
	KeyCtrlP
	KeyCtrlN
)

// Context is the shared mutable state every ChatState's handlers act
// on, passed explicitly rather than held in package globals or hidden
// in closures.
type Context struct {
	Input           InputModel
	History         HistoryModel
	RequestCancel   func()
	RequestShutdown func()
	RequestSubmit   func(text string) bool
	Dispatch        func(key Key) bool

	CurrentToolName string
	StartedAt       int64 // unix seconds the current Thinking/ToolExecution began, for elapsed-time display
}

// InputModel is the narrow slice of inputmodel.Model the state machine
// needs, so this package doesn't import internal/inputmodel directly.
type InputModel interface {
	State() InputState
	CurrentInput() string
	InsertRune(r rune)
	Backspace()
	Delete()
	MoveLeft()
	MoveRight()
	Home()
	End()
	ClearInput()
	CycleSuggestion(delta int)
	AcceptSuggestion()
	CancelCompletion()
	Submit() (string, bool)
	HistoryUp()
	HistoryDown()
}

// HistoryModel is the narrow slice of history.Manager the state
// machine needs to know whether any transcript exists yet (for C12's
// "Input (no history)" vs "Input (with history)" visibility rule).
type HistoryModel interface {
	IsEmpty() bool
}

// State is one node of the chat state machine, carrying its per-state
// render/key/character/enter/exit behavior.
type State interface {
	Kind() ChatState
	OnEnter(ctx *Context, prev ChatState)
	OnExit(ctx *Context, next ChatState)
	HandleKey(ctx *Context, key Key) (next State, handled bool)
	HandleCharacter(ctx *Context, c rune) (next State, handled bool)
	RenderDynamic(ctx *Context) string
}

// Machine owns the current State and drives transitions.
type Machine struct {
	ctx     *Context
	current State
}

// New builds a Machine starting in the Input state.
func New(ctx *Context) *Machine {
	m := &Machine{ctx: ctx, current: &inputState{}}
	m.current.OnEnter(ctx, Input)
	return m
}

// Current returns the active state's kind.
func (m *Machine) Current() ChatState { return m.current.Kind() }

// SetCurrentTool updates the "{tool} → {key_arg_summary}" label
// ToolExecution's RenderDynamic shows.
func (m *Machine) SetCurrentTool(label string) {
	m.ctx.CurrentToolName = label
}

// RecordStart stamps the context's StartedAt for elapsed-time display.
func (m *Machine) RecordStart(unixSeconds int64) {
	m.ctx.StartedAt = unixSeconds
}

// CurrentTool returns the active tool-progress label, empty outside
// ToolExecution.
func (m *Machine) CurrentTool() string { return m.ctx.CurrentToolName }

// StartedAt returns the unix second the current AI operation began.
func (m *Machine) StartedAt() int64 { return m.ctx.StartedAt }

// HandleKey dispatches a non-printable key to the current state,
// transitioning if the state returns a different next state.
func (m *Machine) HandleKey(key Key) bool {
	next, handled := m.current.HandleKey(m.ctx, key)
	m.transition(next)
	return handled
}

// HandleCharacter dispatches a printable character to the current
// state.
func (m *Machine) HandleCharacter(c rune) bool {
	next, handled := m.current.HandleCharacter(m.ctx, c)
	m.transition(next)
	return handled
}

// RenderDynamic renders the current state's dynamic region.
func (m *Machine) RenderDynamic() string {
	return m.current.RenderDynamic(m.ctx)
}

// EnterThinking transitions Input→Thinking on non-slash submit.
func (m *Machine) EnterThinking() {
	m.transition(&thinkingState{})
}

// ObserveStreamChunk applies the Thinking↔ToolExecution transition
// rule given whether the most recent stream chunk carried a tool
// marker.
func (m *Machine) ObserveStreamChunk(isToolExecution bool) {
	switch m.current.Kind() {
	case Thinking:
		if isToolExecution {
			m.transition(&toolExecutionState{})
		}
	case ToolExecution:
		if !isToolExecution {
			m.transition(&thinkingState{})
		}
	}
}

// StreamCompleted transitions Thinking|ToolExecution→Input on stream
// completion, cancellation, or error.
func (m *Machine) StreamCompleted() {
	if m.current.Kind() != Input {
		m.transition(&inputState{})
	}
}

func (m *Machine) transition(next State) {
	if next == nil || next.Kind() == m.current.Kind() {
		return
	}
	prevKind := m.current.Kind()
	m.current.OnExit(m.ctx, next.Kind())
	m.current = next
	m.current.OnEnter(m.ctx, prevKind)
}
