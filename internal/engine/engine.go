// Package engine runs the interactive event loop: a keyboard worker
// posting decoded key events, a render timer redrawing the dynamic
// area, and the streaming orchestrator, all serialized through one
// consumer goroutine so every mutation of input/state/history happens
// in loop order.
package engine

import (
	"context"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"mogzi/internal/inputmodel"
	"mogzi/internal/layout"
	"mogzi/internal/orchestrator"
	"mogzi/internal/scrollback"
	"mogzi/internal/statemachine"
)

// keyEvent is one decoded keyboard event.
type keyEvent struct {
	key    statemachine.Key
	ch     rune
	isChar bool
}

// Engine owns the loop and the pieces it multiplexes.
type Engine struct {
	orch *orchestrator.Orchestrator
	term *scrollback.Terminal
	med  *layout.Mediator

	profileName string
	modelName   string

	// mu serializes the render snapshot against key dispatch; the
	// render provider only reads under it.
	mu sync.Mutex
}

// New builds an Engine over an orchestrator and its terminal.
func New(orch *orchestrator.Orchestrator, term *scrollback.Terminal, profileName, modelName string) *Engine {
	return &Engine{
		orch:        orch,
		term:        term,
		med:         layout.Default(),
		profileName: profileName,
		modelName:   modelName,
	}
}

// Run drives the loop until ctx is done or the orchestrator shuts
// down. The terminal must already be initialized (raw mode, cursor
// hidden).
func (e *Engine) Run(ctx context.Context) error {
	keys := make(chan keyEvent, 32)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readKeyboard(ctx, os.Stdin, keys)
	}()

	dynCancel := make(chan struct{})
	dynDone := make(chan struct{})
	go func() {
		defer close(dynDone)
		e.term.StartDynamicDisplay(e.renderDynamic, dynCancel)
	}()

	defer func() {
		close(dynCancel)
		<-dynDone
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.orch.Done():
			return nil
		case ev := <-keys:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) dispatch(ev keyEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.isChar {
		e.orch.StateMachine.HandleCharacter(ev.ch)
		return
	}
	e.orch.StateMachine.HandleKey(ev.key)
}

// renderDynamic builds the layout snapshot and renders the dynamic
// area. Called from the render timer; reads only, under the lock.
func (e *Engine) renderDynamic() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.orch.Input
	items := in.CompletionItems()
	suggestions := make([]layout.Suggestion, len(items))
	for i, it := range items {
		suggestions[i] = layout.Suggestion{Label: it.Label, Description: it.Description}
	}

	lctx := layout.Context{
		State:              e.orch.StateMachine.Current(),
		HasHistory:         !e.orch.History.IsEmpty(),
		InputText:          in.CurrentInput(),
		CursorPos:          in.CursorPosition(),
		Suggestions:        suggestions,
		SelectedSuggestion: in.SelectedSuggestionIndex(),
		ShowSuggestions:    in.ShowSuggestions(),
		SelectionActive:    in.State() == inputmodel.UserSelection,
		ToolLabel:          e.orch.StateMachine.CurrentTool(),
		StartedAt:          time.Unix(e.orch.StateMachine.StartedAt(), 0),
		ProfileName:        e.profileName,
		ModelName:          e.modelName,
	}
	e.med.Tick(time.Now())
	return e.med.RenderDynamic(lctx)
}

// readKeyboard reads raw bytes from r and posts decoded events to keys
// until ctx is done or the reader errors (terminal closed).
func readKeyboard(ctx context.Context, r *os.File, keys chan<- keyEvent) {
	buf := make([]byte, 64)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.Read(buf)
		if err != nil {
			log.Warn().Err(err).Msg("keyboard reader stopped")
			return
		}
		pending = append(pending, buf[:n]...)
		pending = drainEvents(ctx, pending, keys)
	}
}

// drainEvents decodes as many complete events as possible from b,
// returning undecoded trailing bytes (a partial escape sequence or a
// split UTF-8 rune).
func drainEvents(ctx context.Context, b []byte, keys chan<- keyEvent) []byte {
	for len(b) > 0 {
		ev, consumed, complete := decodeKey(b)
		if !complete {
			return b
		}
		b = b[consumed:]
		select {
		case keys <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// decodeKey decodes one event from the front of b. complete=false
// means b holds a prefix of a longer sequence and more bytes are
// needed — except for a lone ESC, which is returned as KeyEsc
// immediately when it is the only byte buffered (the worker reads in
// bursts, so a real escape sequence arrives together).
func decodeKey(b []byte) (ev keyEvent, consumed int, complete bool) {
	switch b[0] {
	case 0x1b:
		return decodeEscape(b)
	case '\r', '\n':
		return keyEvent{key: statemachine.KeyEnter}, 1, true
	case '\t':
		return keyEvent{key: statemachine.KeyTab}, 1, true
	case 0x7f, 0x08:
		return keyEvent{key: statemachine.KeyBackspace}, 1, true
	case 0x03:
		return keyEvent{key: statemachine.KeyCtrlC}, 1, true
	case 0x0c:
		return keyEvent{key: statemachine.KeyCtrlL}, 1, true
	case 0x10:
		return keyEvent{key: statemachine.KeyCtrlP}, 1, true
	case 0x0e:
		return keyEvent{key: statemachine.KeyCtrlN}, 1, true
	}

	if b[0] < 0x20 {
		// Other control bytes are dropped.
		return keyEvent{key: statemachine.KeyUnknown}, 1, true
	}

	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError && size == 1 && !utf8.FullRune(b) {
		return keyEvent{}, 0, false
	}
	return keyEvent{ch: r, isChar: true}, size, true
}

func decodeEscape(b []byte) (keyEvent, int, bool) {
	if len(b) == 1 {
		return keyEvent{key: statemachine.KeyEsc}, 1, true
	}
	if b[1] != '[' && b[1] != 'O' {
		// ESC followed by an unrelated byte: treat as Esc, leave the
		// rest for the next decode.
		return keyEvent{key: statemachine.KeyEsc}, 1, true
	}
	if len(b) < 3 {
		return keyEvent{}, 0, false
	}

	switch b[2] {
	case 'A':
		return keyEvent{key: statemachine.KeyUp}, 3, true
	case 'B':
		return keyEvent{key: statemachine.KeyDown}, 3, true
	case 'C':
		return keyEvent{key: statemachine.KeyRight}, 3, true
	case 'D':
		return keyEvent{key: statemachine.KeyLeft}, 3, true
	case 'H':
		return keyEvent{key: statemachine.KeyHome}, 3, true
	case 'F':
		return keyEvent{key: statemachine.KeyEnd}, 3, true
	case '1', '7':
		if len(b) < 4 {
			return keyEvent{}, 0, false
		}
		return keyEvent{key: statemachine.KeyHome}, 4, true
	case '4', '8':
		if len(b) < 4 {
			return keyEvent{}, 0, false
		}
		return keyEvent{key: statemachine.KeyEnd}, 4, true
	case '3':
		if len(b) < 4 {
			return keyEvent{}, 0, false
		}
		return keyEvent{key: statemachine.KeyDelete}, 4, true
	}
	// Unrecognized CSI sequence: swallow it.
	return keyEvent{key: statemachine.KeyUnknown}, 3, true
}
