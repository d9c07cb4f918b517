// Package diffmodel computes, formats and parses unified diffs. Line
// computation is delegated to hexops/gotextdiff's Myers implementation;
// this package wraps it with its own value types and a format/parse
// pair that round-trips through plain unified-diff text instead of the
// library's internal representation.
package diffmodel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"mogzi/internal/mogerr"
)

// LineKind classifies a single line of a diff hunk.
type LineKind int

const (
	Context LineKind = iota
	Added
	Removed
)

// DiffLine is one line of a hunk.
type DiffLine struct {
	Kind               LineKind
	Content            string // no trailing newline
	OriginalLineNumber int    // 1-based, 0 when not applicable
	ModifiedLineNumber int    // 1-based, 0 when not applicable
}

// DiffHunk is a contiguous run of changes plus surrounding context.
type DiffHunk struct {
	OriginalStart  int
	OriginalLength int
	ModifiedStart  int
	ModifiedLength int
	Lines          []DiffLine
}

// UnifiedDiff is the diff between two named texts.
type UnifiedDiff struct {
	OriginalFile string
	ModifiedFile string
	Hunks        []DiffHunk
}

const contextLines = 3

// Generate computes a line-granular unified diff between original and
// modified, coalescing adjacent changes whose context windows overlap
// into a single hunk.
func Generate(original, modified, originalFile, modifiedFile string) UnifiedDiff {
	if original == modified {
		return UnifiedDiff{OriginalFile: originalFile, ModifiedFile: modifiedFile}
	}

	if original == "" {
		return singleAdditionHunk(modified, originalFile, modifiedFile)
	}

	edits := myers.ComputeEdits(span.URIFromPath(originalFile), original, modified)
	unified := gotextdiff.ToUnified(originalFile, modifiedFile, original, edits)

	hunks := make([]DiffHunk, 0, len(unified.Hunks))
	for _, h := range unified.Hunks {
		hunks = append(hunks, convertHunk(h))
	}
	return UnifiedDiff{OriginalFile: originalFile, ModifiedFile: modifiedFile, Hunks: hunks}
}

func singleAdditionHunk(modified, originalFile, modifiedFile string) UnifiedDiff {
	lines := splitLines(modified)
	hunkLines := make([]DiffLine, 0, len(lines))
	for i, l := range lines {
		hunkLines = append(hunkLines, DiffLine{Kind: Added, Content: l, ModifiedLineNumber: i + 1})
	}
	return UnifiedDiff{
		OriginalFile: originalFile,
		ModifiedFile: modifiedFile,
		Hunks: []DiffHunk{{
			OriginalStart:  0,
			OriginalLength: 0,
			ModifiedStart:  0,
			ModifiedLength: len(lines),
			Lines:          hunkLines,
		}},
	}
}

func convertHunk(h *gotextdiff.Hunk) DiffHunk {
	var lines []DiffLine
	origLine := h.FromLine
	modLine := h.ToLine
	var origLen, modLen int

	for _, l := range h.Lines {
		switch l.Kind {
		case gotextdiff.Delete:
			lines = append(lines, DiffLine{Kind: Removed, Content: strings.TrimSuffix(l.Content, "\n"), OriginalLineNumber: origLine})
			origLine++
			origLen++
		case gotextdiff.Insert:
			lines = append(lines, DiffLine{Kind: Added, Content: strings.TrimSuffix(l.Content, "\n"), ModifiedLineNumber: modLine})
			modLine++
			modLen++
		default:
			lines = append(lines, DiffLine{Kind: Context, Content: strings.TrimSuffix(l.Content, "\n"), OriginalLineNumber: origLine, ModifiedLineNumber: modLine})
			origLine++
			modLine++
			origLen++
			modLen++
		}
	}

	return DiffHunk{
		OriginalStart:  h.FromLine,
		OriginalLength: origLen,
		ModifiedStart:  h.ToLine,
		ModifiedLength: modLen,
		Lines:          lines,
	}
}

// Format renders a UnifiedDiff as conventional unified-diff text.
func Format(d UnifiedDiff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n", d.OriginalFile)
	fmt.Fprintf(&b, "+++ %s\n", d.ModifiedFile)
	for _, h := range d.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OriginalStart, h.OriginalLength, h.ModifiedStart, h.ModifiedLength)
		for _, l := range h.Lines {
			switch l.Kind {
			case Added:
				b.WriteByte('+')
			case Removed:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(l.Content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Parse parses unified-diff text back into a UnifiedDiff. It tolerates
// \r\n, \r and \n line separators.
func Parse(text string) (UnifiedDiff, error) {
	lines := splitLines(normalizeNewlines(text))

	var d UnifiedDiff
	i := 0
	if i >= len(lines) || !strings.HasPrefix(lines[i], "--- ") {
		return UnifiedDiff{}, mogerr.New(mogerr.InvalidPatchFormat, "missing --- header")
	}
	d.OriginalFile = strings.TrimPrefix(lines[i], "--- ")
	i++
	if i >= len(lines) || !strings.HasPrefix(lines[i], "+++ ") {
		return UnifiedDiff{}, mogerr.New(mogerr.InvalidPatchFormat, "missing +++ header")
	}
	d.ModifiedFile = strings.TrimPrefix(lines[i], "+++ ")
	i++

	for i < len(lines) {
		line := lines[i]
		if line == "" {
			i++
			continue
		}
		if !strings.HasPrefix(line, "@@ ") {
			return UnifiedDiff{}, mogerr.New(mogerr.InvalidPatchFormat, fmt.Sprintf("expected hunk header, got: %q", line))
		}
		origStart, origLen, modStart, modLen, err := parseHunkHeader(line)
		if err != nil {
			return UnifiedDiff{}, err
		}
		i++

		hunk := DiffHunk{OriginalStart: origStart, OriginalLength: origLen, ModifiedStart: modStart, ModifiedLength: modLen}
		origLine := origStart
		modLine := modStart
		for i < len(lines) {
			l := lines[i]
			if l == "" || strings.HasPrefix(l, "@@ ") {
				break
			}
			if len(l) == 0 {
				i++
				continue
			}
			kind, content := classifyLine(l)
			dl := DiffLine{Kind: kind, Content: content}
			switch kind {
			case Added:
				dl.ModifiedLineNumber = modLine
				modLine++
			case Removed:
				dl.OriginalLineNumber = origLine
				origLine++
			default:
				dl.OriginalLineNumber = origLine
				dl.ModifiedLineNumber = modLine
				origLine++
				modLine++
			}
			hunk.Lines = append(hunk.Lines, dl)
			i++
		}
		d.Hunks = append(d.Hunks, hunk)
	}

	return d, nil
}

func classifyLine(l string) (LineKind, string) {
	switch l[0] {
	case '+':
		return Added, l[1:]
	case '-':
		return Removed, l[1:]
	default:
		if l[0] == ' ' {
			return Context, l[1:]
		}
		return Context, l
	}
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

func parseHunkHeader(line string) (origStart, origLen, modStart, modLen int, err error) {
	m := hunkHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, 0, 0, mogerr.New(mogerr.InvalidPatchFormat, fmt.Sprintf("malformed hunk header: %q", line))
	}
	origStart, _ = strconv.Atoi(m[1])
	origLen = 1
	if m[2] != "" {
		origLen, _ = strconv.Atoi(m[2])
	}
	modStart, _ = strconv.Atoi(m[3])
	modLen = 1
	if m[4] != "" {
		modLen, _ = strconv.Atoi(m[4])
	}
	return origStart, origLen, modStart, modLen, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
