package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mogzi/internal/provider"
	"mogzi/internal/sessionstore"
	"mogzi/internal/slashcmd"
	"mogzi/internal/toolresult"
)

// SubmitInput handles the raw text the user just submitted: it either
// dispatches a slash command or drives a cancellable AI stream to
// completion.
func (o *Orchestrator) SubmitInput(parent context.Context, rawInput string) {
	if slashcmd.IsCommand(rawInput) {
		o.handleSlashCommand(rawInput)
		return
	}

	turnCtx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	defer func() { o.cancel = nil }()

	// Step 1: environment preamble appended for AI consumption only;
	// the unmodified text is what gets displayed and stored.
	aiText := rawInput + o.environmentPreamble()

	// Step 2: add the user message to history (display copy, not the
	// preamble-augmented one).
	o.History.AddUser(rawInput, nil)
	o.Terminal.WriteStatic(rawInput, false)

	o.StateMachine.EnterThinking()
	o.StateMachine.RecordStart(time.Now().Unix())

	// Build the provider view before opening the pending assistant
	// message, so the just-added user turn is still the last entry and
	// picks up the preamble substitution.
	messages := o.buildProviderHistory(aiText)
	o.History.BeginPending()
	o.runStream(turnCtx, messages)
}

func (o *Orchestrator) handleSlashCommand(rawInput string) {
	o.History.AddUser(rawInput, nil)
	o.Terminal.WriteStatic(rawInput, false)

	cc := o.CommandContext(func(items []slashcmd.SessionSummary, onSelect func(id string)) {
		o.Terminal.WriteStatic(renderPanel("Sessions (↑/↓, enter to select)", sessionListPanelBody(items, len(items))), false)
		o.Input.SetSelectionProvider(&sessionListProvider{items: items, onSelect: onSelect})
	})

	res, ok, err := o.Commands.Dispatch(cc, rawInput)
	if err != nil {
		o.History.AddAssistant(fmt.Sprintf("Error: %s", err))
		o.Terminal.WriteStatic(errorStyle.Render(err.Error()), false)
		return
	}
	if !ok {
		name, _ := slashcmd.Parse(rawInput)
		msg := "Unknown command: /" + name
		o.History.AddAssistant(msg)
		o.Terminal.WriteStatic(msg, false)
		return
	}
	if res.Output != "" {
		o.Terminal.WriteStatic(res.Output, false)
	}
}

// buildProviderHistory converts the history manager's transcript into
// provider.Message values, substituting aiText for the just-submitted
// user turn so the model sees the environment preamble that the
// display/history copy omits.
func (o *Orchestrator) buildProviderHistory(aiText string) []provider.Message {
	display := o.History.GetForAI()
	out := make([]provider.Message, 0, len(display))
	for i, m := range display {
		role := string(m.Role)
		content := m.Content
		if aiText != "" && i == len(display)-1 && m.Role == sessionstore.RoleUser {
			content = aiText
		}
		out = append(out, provider.Message{Role: role, Content: content})
	}
	if plan := o.Scratchpad.Content(); plan != "" {
		out = append(out, provider.Message{
			Role:    string(sessionstore.RoleSystem),
			Content: "Current plan:\n" + plan,
		})
	}
	return out
}

func (o *Orchestrator) providerTools() []provider.Tool {
	out := make([]provider.Tool, len(o.toolSpecs))
	for i, ts := range o.toolSpecs {
		out[i] = provider.Tool{Name: ts.name, Description: ts.description, Parameters: ts.schema}
	}
	return out
}

func (o *Orchestrator) findToolSpec(name string) (toolSpec, bool) {
	for _, ts := range o.toolSpecs {
		if ts.name == name {
			return ts, true
		}
	}
	return toolSpec{}, false
}

// runStream drives one provider.ChatStream call to completion,
// classifying each event and updating the state machine, history and
// terminal as it goes.
func (o *Orchestrator) runStream(ctx context.Context, messages []provider.Message) {
	stream, err := o.Provider.ChatStream(ctx, messages, o.providerTools())
	if err != nil {
		o.finishWithError(err)
		return
	}

	var contentBuf strings.Builder
	var toolCallArgs []json.RawMessage
	var toolCallNames []string
	var toolCallIDs []string
	argBuilders := map[int]*strings.Builder{}

	for evt := range stream {
		select {
		case <-ctx.Done():
			o.finishCancelled()
			return
		default:
		}

		switch evt.Type {
		case provider.EventContentDelta:
			contentBuf.WriteString(evt.Content)
			o.History.UpdateLastPending(evt.Content)
			o.StateMachine.ObserveStreamChunk(containsToolMarker(evt.Content))
			o.Terminal.WriteStatic(contentBuf.String(), true)

		case provider.EventReasoningDelta:
			// Reasoning is not part of the display transcript.

		case provider.EventToolCallBegin:
			o.StateMachine.ObserveStreamChunk(true)
			toolCallIDs = append(toolCallIDs, evt.ToolCallID)
			toolCallNames = append(toolCallNames, evt.ToolCallName)
			argBuilders[evt.ToolCallIndex] = &strings.Builder{}

		case provider.EventToolCallDelta:
			if b, ok := argBuilders[evt.ToolCallIndex]; ok {
				b.WriteString(evt.ToolCallArgs)
			}

		case provider.EventUsage:
			o.History.AddUsage(evt.InputTokens, evt.OutputTokens)

		case provider.EventError:
			o.finishWithError(evt.Err)
			return

		case provider.EventDone:
			// handled after the loop drains
		}
	}

	for i := range toolCallIDs {
		if b, ok := argBuilders[i]; ok {
			toolCallArgs = append(toolCallArgs, json.RawMessage(b.String()))
		} else {
			toolCallArgs = append(toolCallArgs, json.RawMessage("{}"))
		}
	}

	o.History.FinalizeStreaming()

	if len(toolCallIDs) == 0 {
		o.StateMachine.StreamCompleted()
		return
	}

	o.executeToolCalls(ctx, toolCallNames, toolCallArgs)
	if ctx.Err() != nil {
		// The cancellation notice was already written by the tool path.
		o.StateMachine.StreamCompleted()
		return
	}

	// Continue the conversation with tool results appended; one submit
	// may span several tool rounds.
	messages = o.buildProviderHistory("")
	o.runStream(ctx, messages)
}

func containsToolMarker(s string) bool {
	return strings.Contains(s, "<tool_response") || strings.Contains(s, "</tool_response>")
}

// executeToolCalls runs each tool call in order, capturing pre-edit
// content for edit-type tools before running them and building a
// display diff (or written-content preview) from the result.
func (o *Orchestrator) executeToolCalls(ctx context.Context, names []string, args []json.RawMessage) {
	o.StateMachine.ObserveStreamChunk(true)

	for i, name := range names {
		raw := args[i]

		summary := keyArgSummary(raw)
		if summary != "" {
			o.StateMachine.SetCurrentTool(fmt.Sprintf("%s → %s", name, summary))
		} else {
			o.StateMachine.SetCurrentTool(name)
		}

		var preEdit *string
		if isEditTool(name) || isDiffDisplayTool(name) {
			var pathArgs struct {
				Path string `json:"path"`
			}
			_ = json.Unmarshal(raw, &pathArgs)
			target := pathArgs.Path
			if target != "" && !filepath.IsAbs(target) {
				target = filepath.Join(o.ToolCtx.WorkingDir, target)
			}
			content, err := os.ReadFile(target)
			s := ""
			if err == nil {
				s = string(content)
			}
			preEdit = &s
		}

		spec, ok := o.findToolSpec(name)
		var doc string
		if !ok {
			doc = fmt.Sprintf(`<tool_response tool_name=%q><result status="FAILED"/><error>unknown tool</error></tool_response>`, name)
		} else {
			doc = spec.run(ctx, raw)
		}

		if ctx.Err() != nil {
			const msg = "⚠ Tool execution cancelled."
			o.History.AddTool(doc)
			o.History.AddAssistant(msg)
			o.Terminal.WriteStatic(msg, false)
			return
		}

		info, err := toolresult.Parse(doc)
		if err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("failed to parse tool response")
			o.History.AddTool(doc)
			continue
		}

		o.renderToolResult(name, info, preEdit)
		o.History.AddTool(doc)
	}
}

// renderToolResult emits the static tool-execution display block: a
// diff for edit/patch tools, or a truncated content preview for
// write-type tools.
func (o *Orchestrator) renderToolResult(toolName string, info toolresult.Info, preEdit *string) {
	var body strings.Builder
	fmt.Fprintf(&body, "%s\n", toolName)

	if info.Status == toolresult.Failed {
		body.WriteString(errorStyle.Render(info.ErrorMessage))
		o.Terminal.WriteStatic(body.String(), false)
		return
	}

	switch {
	case info.FilePath != "" && info.NewContent != "" && isDiffDisplayTool(toolName):
		diff := toolresult.DisplayDiff(preEdit, info.NewContent, info.FilePath)
		if diff != nil {
			body.WriteString(renderDisplayDiff(diff))
		} else {
			body.WriteString(previewLastLines(info.NewContent, 50))
		}
	case info.NewContent != "":
		body.WriteString(previewLastLines(info.NewContent, 50))
	case info.Description != "":
		body.WriteString(info.Description)
	}

	o.Terminal.WriteStatic(body.String(), false)
}

// previewLastLines returns the last n lines of s, prefixed with a
// "showing last N of M" banner when truncated.
func previewLastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	tail := lines[len(lines)-n:]
	banner := fmt.Sprintf("(showing last %d of %d lines)\n", n, len(lines))
	return banner + strings.Join(tail, "\n")
}

func (o *Orchestrator) finishCancelled() {
	const msg = "⚠ Request cancelled."
	o.History.FinalizeStreaming()
	o.History.AddAssistant(msg)
	o.Terminal.WriteStatic(msg, false)
	o.StateMachine.StreamCompleted()
}

func (o *Orchestrator) finishWithError(err error) {
	o.History.FinalizeStreaming()
	msg := fmt.Sprintf("Error: %s", err)
	o.History.AddAssistant(msg)
	o.Terminal.WriteStatic(errorStyle.Render(msg), false)
	o.StateMachine.StreamCompleted()
}
