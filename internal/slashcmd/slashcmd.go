// Package slashcmd parses and dispatches `/`-prefixed commands and
// exposes the command catalog for autocomplete. Commands register into
// a name-keyed table and are looked up and invoked by name; handlers
// never reach the LLM.
package slashcmd

import "strings"

// Result is what a handler produces: the text to render.
type Result struct {
	Output string
}

// Handler executes one recognized command. ctx carries whatever state
// handlers need (session store, history manager, etc); it's passed as
// an opaque value constructed by the caller (internal/orchestrator) so
// this package stays free of a dependency on those concrete types.
type Handler func(ctx any, args string) (Result, error)

// Spec describes one registered command for both dispatch and catalog
// display.
type Spec struct {
	Name        string
	Description string
	Handler     Handler
}

// Processor holds the registered command table.
type Processor struct {
	commands map[string]Spec
	order    []string
}

// New builds an empty Processor.
func New() *Processor {
	return &Processor{commands: make(map[string]Spec)}
}

// Register adds spec to the table, preserving registration order for
// Catalog's iteration order.
func (p *Processor) Register(spec Spec) {
	if _, exists := p.commands[spec.Name]; !exists {
		p.order = append(p.order, spec.Name)
	}
	p.commands[spec.Name] = spec
}

// IsCommand reports whether input looks like a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// Parse splits a `/command rest of args` input into its command name
// (without the leading slash) and the remainder after a single space.
func Parse(input string) (name, args string) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), "/")
	if idx := strings.IndexByte(trimmed, ' '); idx != -1 {
		return trimmed[:idx], trimmed[idx+1:]
	}
	return trimmed, ""
}

// Dispatch looks up and invokes the handler for input. ok is false when
// input isn't a recognized command; the caller is responsible for
// surfacing the "Unknown command: …" message.
func (p *Processor) Dispatch(ctx any, input string) (Result, bool, error) {
	name, args := Parse(input)
	spec, ok := p.commands[name]
	if !ok {
		return Result{}, false, nil
	}
	res, err := spec.Handler(ctx, args)
	return res, true, err
}

// Catalog returns every registered command in registration order, for
// SlashCommandProvider's prefix-filtered completion list.
func (p *Processor) Catalog() []Spec {
	out := make([]Spec, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.commands[name])
	}
	return out
}
