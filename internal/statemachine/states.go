package statemachine

import "fmt"

// inputState is ChatState Input: the user edits inputmodel's buffer;
// Enter on non-blank text requests a submit; for non-slash text the
// Machine caller (internal/orchestrator) then drives EnterThinking.
type inputState struct{}

func (s *inputState) Kind() ChatState { return Input }

func (s *inputState) OnEnter(ctx *Context, prev ChatState) {
	ctx.CurrentToolName = ""
}

func (s *inputState) OnExit(ctx *Context, next ChatState) {}

func (s *inputState) HandleKey(ctx *Context, key Key) (State, bool) {
	switch ctx.Input.State() {
	case InputAutocomplete, InputUserSelection:
		switch key {
		case KeyUp:
			ctx.Input.CycleSuggestion(-1)
			return nil, true
		case KeyDown:
			ctx.Input.CycleSuggestion(1)
			return nil, true
		case KeyTab, KeyEnter:
			ctx.Input.AcceptSuggestion()
			return nil, true
		case KeyEsc:
			ctx.Input.CancelCompletion()
			return nil, true
		}
	}

	switch key {
	case KeyEsc:
		ctx.Input.ClearInput()
		return nil, true
	case KeyEnter:
		if text, ok := ctx.Input.Submit(); ok {
			if ctx.RequestSubmit != nil {
				ctx.RequestSubmit(text)
			}
		}
		return nil, true
	case KeyLeft:
		ctx.Input.MoveLeft()
		return nil, true
	case KeyRight:
		ctx.Input.MoveRight()
		return nil, true
	case KeyHome:
		ctx.Input.Home()
		return nil, true
	case KeyEnd:
		ctx.Input.End()
		return nil, true
	case KeyBackspace:
		ctx.Input.Backspace()
		return nil, true
	case KeyDelete:
		ctx.Input.Delete()
		return nil, true
	case KeyUp, KeyCtrlP:
		ctx.Input.HistoryUp()
		return nil, true
	case KeyDown, KeyCtrlN:
		ctx.Input.HistoryDown()
		return nil, true
	case KeyCtrlC:
		requestShutdown(ctx)
		return nil, true
	case KeyCtrlL:
		// Ctrl+L clears scrollback and resets the transcript — a wider
		// effect than Esc's input-only clear, so it's routed through
		// Dispatch to whatever owns the scrollback terminal and
		// history manager rather than handled locally.
		if ctx.Dispatch != nil {
			ctx.Dispatch(KeyCtrlL)
		}
		ctx.Input.ClearInput()
		return nil, true
	}
	return nil, false
}

func (s *inputState) HandleCharacter(ctx *Context, c rune) (State, bool) {
	ctx.Input.InsertRune(c)
	return nil, true
}

func (s *inputState) RenderDynamic(ctx *Context) string {
	return ""
}

// thinkingState is ChatState Thinking: an AI stream is in flight and
// hasn't yet surfaced a tool marker.
type thinkingState struct{}

func (s *thinkingState) Kind() ChatState { return Thinking }

func (s *thinkingState) OnEnter(ctx *Context, prev ChatState) {}

func (s *thinkingState) OnExit(ctx *Context, next ChatState) {}

func (s *thinkingState) HandleKey(ctx *Context, key Key) (State, bool) {
	switch key {
	case KeyEsc:
		if ctx.RequestCancel != nil {
			ctx.RequestCancel()
		}
		return nil, true
	case KeyCtrlC:
		requestShutdown(ctx)
		return nil, true
	}
	return nil, false
}

func (s *thinkingState) HandleCharacter(ctx *Context, c rune) (State, bool) {
	return nil, false
}

func (s *thinkingState) RenderDynamic(ctx *Context) string {
	return "Thinking… (esc to cancel)"
}

// toolExecutionState is ChatState ToolExecution: the active stream
// chunk carries a tool-call, tool-result, or tool-response XML marker.
type toolExecutionState struct{}

func (s *toolExecutionState) Kind() ChatState { return ToolExecution }

func (s *toolExecutionState) OnEnter(ctx *Context, prev ChatState) {}

func (s *toolExecutionState) OnExit(ctx *Context, next ChatState) {
	if next == Input {
		ctx.CurrentToolName = ""
	}
}

func (s *toolExecutionState) HandleKey(ctx *Context, key Key) (State, bool) {
	switch key {
	case KeyEsc:
		if ctx.RequestCancel != nil {
			ctx.RequestCancel()
		}
		return nil, true
	case KeyCtrlC:
		requestShutdown(ctx)
		return nil, true
	}
	return nil, false
}

// requestShutdown invokes ctx.RequestShutdown, falling back to
// RequestCancel for callers that haven't wired the two apart. Ctrl+C
// cancels the outer token and shuts down, distinct from Esc's narrower
// in-flight-operation cancel.
func requestShutdown(ctx *Context) {
	if ctx.RequestShutdown != nil {
		ctx.RequestShutdown()
		return
	}
	if ctx.RequestCancel != nil {
		ctx.RequestCancel()
	}
}

func (s *toolExecutionState) HandleCharacter(ctx *Context, c rune) (State, bool) {
	return nil, false
}

func (s *toolExecutionState) RenderDynamic(ctx *Context) string {
	return fmt.Sprintf("%s (esc to cancel)", ctx.CurrentToolName)
}
