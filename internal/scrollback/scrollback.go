// Package scrollback implements a scrollback-aware terminal: an
// append-only static log, at most one in-place updatable block, and a
// dynamic bottom area redrawn on a timer. Raw mode goes through
// github.com/charmbracelet/x/term; cursor visibility uses hand-written
// hide/show escapes, and all other cursor motion is issued through
// github.com/charmbracelet/x/ansi. Word-wrapped lines carry their SGR
// styles forward so each visual line renders correctly on its own.
package scrollback

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
)

const hideCursor = "\x1b[?25l"
const showCursor = "\x1b[?25h"

// DynamicProvider renders the current dynamic-region content. It must
// be side-effect-free: the render-timer task calls it concurrently
// with whatever owns the data it reads.
type DynamicProvider func() string

// Terminal is the scrollback-aware terminal abstraction: a growing
// static log, at most one updatable block, and a dynamic footer
// redrawn on a timer.
type Terminal struct {
	out io.Writer
	mu  sync.Mutex

	width int

	rawState         *term.State
	rawFD            int
	hasUpdatable     bool
	lastDynamicLines int
	dynamicLineCount int
}

// New constructs a Terminal writing to out (typically os.Stdout), sized
// to width columns.
func New(out io.Writer, width int) *Terminal {
	if width <= 0 {
		width = 80
	}
	return &Terminal{out: out, width: width}
}

// Initialize hides the cursor and clears the screen, entering the mode
// the scrollback terminal expects to run in for the remainder of the
// session.
func (t *Terminal) Initialize(fd int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := term.MakeRaw(uintptr(fd))
	if err == nil {
		t.rawState = state
		t.rawFD = fd
	}
	fmt.Fprint(t.out, hideCursor)
	fmt.Fprint(t.out, ansi.EraseDisplay(2)+ansi.CursorPosition(1, 1))
	return nil
}

// Shutdown restores the cursor (and terminal mode, if raw mode was
// entered).
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rawState != nil {
		_ = term.Restore(uintptr(t.rawFD), t.rawState)
		t.rawState = nil
	}
	fmt.Fprint(t.out, showCursor)
}

// Clear erases the screen and homes the cursor, dropping any updatable
// block (Ctrl+L, /clear).
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, ansi.EraseDisplay(2)+ansi.CursorPosition(1, 1))
	t.hasUpdatable = false
	t.lastDynamicLines = 0
	t.dynamicLineCount = 0
}

// WriteStatic appends renderable to the static log. When updatable is
// true it becomes the (single) updatable block, replacing whatever
// updatable block existed before; a subsequent WriteStatic with
// updatable=false first clears that block's screen presence and then
// appends it permanently, so only one updatable region ever exists at
// once.
func (t *Terminal) WriteStatic(renderable string, updatable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := wrapANSI(renderable, t.width)
	if t.hasUpdatable {
		t.clearLastUpdatable()
	}
	for _, l := range lines {
		fmt.Fprintln(t.out, l)
	}
	t.hasUpdatable = updatable
	if updatable {
		t.lastDynamicLines = len(lines)
	} else {
		t.lastDynamicLines = 0
	}
}

// clearLastUpdatable moves the cursor up over the previously written
// updatable block and erases it, so the next WriteStatic call can
// overwrite it in place.
func (t *Terminal) clearLastUpdatable() {
	if t.lastDynamicLines == 0 {
		return
	}
	fmt.Fprint(t.out, ansi.CursorUp(t.lastDynamicLines))
	fmt.Fprint(t.out, ansi.EraseDisplay(0))
}

const dynamicFrameInterval = 80 * time.Millisecond // ~12.5 Hz

// StartDynamicDisplay calls provider() on a fixed cadence (≥10 Hz) to
// re-render the dynamic area only, until cancel is closed.
func (t *Terminal) StartDynamicDisplay(provider DynamicProvider, cancel <-chan struct{}) {
	ticker := time.NewTicker(dynamicFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			t.clearDynamicArea()
			return
		case <-ticker.C:
			t.renderDynamicFrame(provider())
		}
	}
}

func (t *Terminal) renderDynamicFrame(content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := wrapANSI(content, t.width)
	if t.dynamicLineCount > 0 {
		fmt.Fprint(t.out, ansi.CursorUp(t.dynamicLineCount))
		fmt.Fprint(t.out, ansi.EraseDisplay(0))
	}
	for _, l := range lines {
		fmt.Fprintln(t.out, l)
	}
	t.dynamicLineCount = len(lines)
}

func (t *Terminal) clearDynamicArea() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dynamicLineCount > 0 {
		fmt.Fprint(t.out, ansi.CursorUp(t.dynamicLineCount))
		fmt.Fprint(t.out, ansi.EraseDisplay(0))
	}
	t.dynamicLineCount = 0
}

// wrapANSI word-wraps an ANSI-styled string to width, returning the
// resulting visual lines with styles propagated across breaks so each
// line renders correctly independent of its neighbors.
func wrapANSI(s string, width int) []string {
	if width <= 0 || s == "" {
		return []string{s}
	}
	wrapped := ansi.Wordwrap(s, width, "")
	wrapped = ansi.Hardwrap(wrapped, width, true)
	lines := strings.Split(wrapped, "\n")
	return propagateStyles(lines)
}

func propagateStyles(lines []string) []string {
	if len(lines) <= 1 {
		return lines
	}
	var active []string
	for i, line := range lines {
		if i > 0 && len(active) > 0 {
			lines[i] = strings.Join(active, "") + line
		}
		active = scanSGR(lines[i], active)
		if i < len(lines)-1 && len(active) > 0 {
			lines[i] = lines[i] + ansi.ResetStyle
		}
	}
	return lines
}

func scanSGR(line string, active []string) []string {
	const esc = '\x1b'
	for j := 0; j < len(line); j++ {
		if line[j] != byte(esc) || j+1 >= len(line) || line[j+1] != '[' {
			continue
		}
		k := j + 2
		for k < len(line) && line[k] != 'm' && line[k] != esc {
			k++
		}
		if k >= len(line) || line[k] != 'm' {
			continue
		}
		seq := line[j : k+1]
		params := line[j+2 : k]
		if isResetSGR(params) {
			active = active[:0]
		} else {
			active = append(active, seq)
		}
		j = k
	}
	return active
}

func isResetSGR(params string) bool {
	return params == "" || params == "0"
}
