package scrollback

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"
)

var cursorUpRe = regexp.MustCompile(`\x1b\[[0-9]*A`)

func TestWriteStaticAppends(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, 80)

	term.WriteStatic("first", false)
	term.WriteStatic("second", false)

	out := buf.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("static lines missing: %q", out)
	}
	if cursorUpRe.MatchString(out) {
		t.Fatal("plain static writes must not move the cursor up")
	}
}

func TestUpdatableBlockIsReplaced(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, 80)

	term.WriteStatic("v1", true)
	before := buf.Len()
	term.WriteStatic("v2", true)

	after := buf.String()[before:]
	if !cursorUpRe.MatchString(after) {
		t.Fatalf("expected cursor-up before rewriting the updatable block, got %q", after)
	}
	if !strings.Contains(after, "v2") {
		t.Fatalf("replacement content missing: %q", after)
	}
}

func TestUpdatableThenPermanentClearsOnce(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, 80)

	term.WriteStatic("live", true)
	before := buf.Len()
	term.WriteStatic("done", false)
	mid := buf.String()[before:]
	if !cursorUpRe.MatchString(mid) {
		t.Fatal("permanent write should clear the prior updatable block")
	}

	// With no updatable block left, the next write is a plain append.
	before = buf.Len()
	term.WriteStatic("more", false)
	tail := buf.String()[before:]
	if cursorUpRe.MatchString(tail) {
		t.Fatal("no updatable block should remain after a permanent write")
	}
}

func TestWrapLongLines(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, 10)
	term.WriteStatic(strings.Repeat("a", 25), false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 wrapped lines, got %d: %q", len(lines), lines)
	}
}

func TestStylePropagationAcrossWraps(t *testing.T) {
	styled := "\x1b[31m" + strings.Repeat("x", 25) + "\x1b[0m"
	lines := wrapANSI(styled, 10)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d lines", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "\x1b[31m") {
			t.Fatalf("line %d lost its style: %q", i, lines[i])
		}
	}
	for i := 0; i < len(lines)-1; i++ {
		if !strings.HasSuffix(lines[i], "\x1b[0m") && !strings.HasSuffix(lines[i], ansiReset) {
			t.Fatalf("line %d missing trailing reset: %q", i, lines[i])
		}
	}
}

const ansiReset = "\x1b[m"

func TestStartDynamicDisplayStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	term := New(&buf, 80)

	cancel := make(chan struct{})
	done := make(chan struct{})
	go func() {
		term.StartDynamicDisplay(func() string { return "tick" }, cancel)
		close(done)
	}()

	time.Sleep(250 * time.Millisecond)
	close(cancel)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dynamic display did not stop on cancel")
	}
	if !strings.Contains(buf.String(), "tick") {
		t.Fatal("dynamic provider output never rendered")
	}
}
