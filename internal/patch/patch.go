// Package patch applies a parsed unified diff to source text, falling
// back to a handful of fuzzy placement strategies when the hunk's
// context no longer matches the original exactly. Hunks apply
// sequentially with an accumulated line offset; a hunk that cannot be
// placed fails the whole patch.
package patch

import (
	"strings"

	"mogzi/internal/diffmodel"
)

// Strategy names the fuzzy placement strategy that located a hunk.
type Strategy string

const (
	StrategyWhitespaceInsensitive Strategy = "whitespace-insensitive"
	StrategySlidingWindow         Strategy = "sliding-window"
	StrategyIdentifierNormalized  Strategy = "identifier-normalized"
)

// similarityThreshold is the minimum normalized match score the sliding
// window strategy accepts.
const similarityThreshold = 0.85

// AppliedHunk records where a hunk ended up landing in the modified text.
type AppliedHunk struct {
	OriginalStart int
	ModifiedStart int
	Fuzzy         bool
	Strategy      Strategy
}

// ConflictingHunk points at the hunk that could not be placed.
type ConflictingHunk struct {
	Index         int
	OriginalStart int
}

// Result is the outcome of attempting to apply a patch.
type Result struct {
	Success           bool
	ModifiedContent   string
	AppliedHunks      []AppliedHunk
	TotalLinesAdded   int
	TotalLinesRemoved int
	AppliedWithFuzzy  bool
	FuzzyStrategy     Strategy
	Error             string
	ConflictingHunk   *ConflictingHunk
}

// Apply applies patch to original. When fuzzy is false, every hunk must
// match its Context+Removed lines exactly at OriginalStart or the whole
// patch fails.
func Apply(original string, d diffmodel.UnifiedDiff, fuzzy bool) Result {
	lineEnding := dominantLineEnding(original)
	lines := splitNormalized(original)

	offset := 0
	var applied []AppliedHunk
	addedTotal, removedTotal := 0, 0

	for idx, hunk := range d.Hunks {
		removed, added := contextAndRemoved(hunk), contextAndAdded(hunk)
		placeAt := hunk.OriginalStart - 1 + offset
		if placeAt < 0 {
			placeAt = 0
		}

		pos, ok := matchExact(lines, removed, placeAt)
		strategy := Strategy("")
		isFuzzy := false
		if !ok && fuzzy {
			if p, found := matchWhitespaceInsensitive(lines, removed, placeAt); found {
				pos, ok, strategy, isFuzzy = p, true, StrategyWhitespaceInsensitive, true
			} else if p, found := matchSlidingWindow(lines, removed); found {
				pos, ok, strategy, isFuzzy = p, true, StrategySlidingWindow, true
			} else if p, found := matchIdentifierNormalized(lines, removed); found {
				pos, ok, strategy, isFuzzy = p, true, StrategyIdentifierNormalized, true
			}
		}

		if !ok {
			return Result{
				Success: false,
				Error:   "hunk could not be placed",
				ConflictingHunk: &ConflictingHunk{
					Index:         idx,
					OriginalStart: hunk.OriginalStart,
				},
			}
		}

		before := append([]string{}, lines[:pos]...)
		after := append([]string{}, lines[pos+len(removed):]...)
		lines = append(before, append(append([]string{}, added...), after...)...)

		offset += len(added) - len(removed)
		applied = append(applied, AppliedHunk{
			OriginalStart: hunk.OriginalStart,
			ModifiedStart: pos + 1,
			Fuzzy:         isFuzzy,
			Strategy:      strategy,
		})

		for _, l := range hunk.Lines {
			switch l.Kind {
			case diffmodel.Added:
				addedTotal++
			case diffmodel.Removed:
				removedTotal++
			}
		}
	}

	modified := strings.Join(lines, "\n")
	modified = strings.ReplaceAll(modified, "\n", lineEnding)

	fuzzyUsed := false
	var winningStrategy Strategy
	for _, a := range applied {
		if a.Fuzzy {
			fuzzyUsed = true
			winningStrategy = a.Strategy
		}
	}

	return Result{
		Success:           true,
		ModifiedContent:   modified,
		AppliedHunks:      applied,
		TotalLinesAdded:   addedTotal,
		TotalLinesRemoved: removedTotal,
		AppliedWithFuzzy:  fuzzyUsed,
		FuzzyStrategy:      winningStrategy,
	}
}

func contextAndRemoved(h diffmodel.DiffHunk) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind == diffmodel.Context || l.Kind == diffmodel.Removed {
			out = append(out, l.Content)
		}
	}
	return out
}

func contextAndAdded(h diffmodel.DiffHunk) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Kind == diffmodel.Context || l.Kind == diffmodel.Added {
			out = append(out, l.Content)
		}
	}
	return out
}

// matchExact checks whether want matches lines starting at pos exactly.
func matchExact(lines []string, want []string, pos int) (int, bool) {
	if pos < 0 || pos+len(want) > len(lines) {
		return 0, false
	}
	for i, w := range want {
		if lines[pos+i] != w {
			return 0, false
		}
	}
	return pos, true
}

// matchWhitespaceInsensitive retries matchExact at pos, comparing lines
// with runs of whitespace collapsed.
func matchWhitespaceInsensitive(lines []string, want []string, pos int) (int, bool) {
	if pos < 0 || pos+len(want) > len(lines) {
		return 0, false
	}
	for i, w := range want {
		if collapseWhitespace(lines[pos+i]) != collapseWhitespace(w) {
			return 0, false
		}
	}
	return pos, true
}

// matchSlidingWindow scans the whole file for the best-scoring window of
// len(want) lines, accepting the best match at or above the threshold.
// It requires the winner to be unambiguous: a second window scoring
// within 0.01 of the best is treated as no match.
func matchSlidingWindow(lines []string, want []string) (int, bool) {
	if len(want) == 0 || len(want) > len(lines) {
		return 0, false
	}
	scores := make([]float64, 0, len(lines)-len(want)+1)
	bestScore := -1.0
	bestPos := -1
	for pos := 0; pos+len(want) <= len(lines); pos++ {
		score := windowSimilarity(lines[pos:pos+len(want)], want)
		scores = append(scores, score)
		if score > bestScore {
			bestScore = score
			bestPos = pos
		}
	}
	if bestPos < 0 || bestScore < similarityThreshold {
		return 0, false
	}
	for pos, score := range scores {
		if pos != bestPos && bestScore-score <= 0.01 {
			return 0, false
		}
	}
	return bestPos, true
}

// matchIdentifierNormalized retries a full-file scan comparing lines with
// all whitespace runs collapsed to a single space (a superset of the
// whitespace-insensitive strategy, used as the last fallback so it never
// shadows the earlier, more targeted strategies).
func matchIdentifierNormalized(lines []string, want []string) (int, bool) {
	normWant := make([]string, len(want))
	for i, w := range want {
		normWant[i] = collapseWhitespace(w)
	}
	if len(normWant) == 0 || len(normWant) > len(lines) {
		return 0, false
	}
	for pos := 0; pos+len(normWant) <= len(lines); pos++ {
		matched := true
		for i, w := range normWant {
			if collapseWhitespace(lines[pos+i]) != w {
				matched = false
				break
			}
		}
		if matched {
			return pos, true
		}
	}
	return 0, false
}

// windowSimilarity scores a candidate window against want as the mean
// of per-line similarities: a line scores 1 when it matches after
// whitespace collapsing, otherwise a Levenshtein-style character
// similarity, so partial edits (renamed identifiers, altered literals)
// still score reasonably rather than being all-or-nothing per line.
func windowSimilarity(window, want []string) float64 {
	if len(window) != len(want) || len(window) == 0 {
		return 0
	}
	var total float64
	for i := range window {
		total += lineSimilarity(window[i], want[i])
	}
	return total / float64(len(window))
}

func lineSimilarity(a, b string) float64 {
	a, b = collapseWhitespace(a), collapseWhitespace(b)
	if a == b {
		return 1
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes the edit distance between two strings using the
// classic O(n*m) dynamic-programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func dominantLineEnding(s string) string {
	if strings.Contains(s, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

func splitNormalized(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
