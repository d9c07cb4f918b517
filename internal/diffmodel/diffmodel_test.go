package diffmodel

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/exp/golden"

	"mogzi/internal/mogerr"
)

func TestGenerateEqualInputs(t *testing.T) {
	d := Generate("same\ncontent\n", "same\ncontent\n", "a", "b")
	if len(d.Hunks) != 0 {
		t.Fatalf("expected no hunks for equal inputs, got %d", len(d.Hunks))
	}
}

func TestGenerateFromEmpty(t *testing.T) {
	d := Generate("", "one\ntwo\n", "a", "b")
	if len(d.Hunks) != 1 {
		t.Fatalf("expected a single hunk, got %d", len(d.Hunks))
	}
	h := d.Hunks[0]
	if h.OriginalStart != 0 || h.OriginalLength != 0 {
		t.Fatalf("expected original 0,0, got %d,%d", h.OriginalStart, h.OriginalLength)
	}
	if h.ModifiedLength != 2 {
		t.Fatalf("expected 2 modified lines, got %d", h.ModifiedLength)
	}
	for _, l := range h.Lines {
		if l.Kind != Added {
			t.Fatalf("expected only Added lines, got %v", l.Kind)
		}
	}
}

func TestHunkLineAccounting(t *testing.T) {
	original := "one\ntwo\nthree\nfour\nfive\nsix\nseven\n"
	modified := "one\ntwo\nTHREE\nfour\nfive\nsix\nseven\n"
	d := Generate(original, modified, "a", "b")
	if len(d.Hunks) == 0 {
		t.Fatal("expected at least one hunk")
	}
	for _, h := range d.Hunks {
		var ctx, add, del int
		for _, l := range h.Lines {
			switch l.Kind {
			case Context:
				ctx++
			case Added:
				add++
			case Removed:
				del++
			}
		}
		if h.OriginalLength != ctx+del {
			t.Errorf("original_length=%d, want %d (context+removed)", h.OriginalLength, ctx+del)
		}
		if h.ModifiedLength != ctx+add {
			t.Errorf("modified_length=%d, want %d (context+added)", h.ModifiedLength, ctx+add)
		}
	}
}

func TestFormatGolden(t *testing.T) {
	original := "alpha\nbeta\ngamma\ndelta\nepsilon\n"
	modified := "alpha\nbeta\nGAMMA\ndelta\nepsilon\n"
	d := Generate(original, modified, "a/file.txt", "b/file.txt")
	golden.RequireEqual(t, []byte(Format(d)))
}

func TestFormatParseRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		original string
		modified string
	}{
		{"middle change", "one\ntwo\nthree\nfour\nfive\n", "one\ntwo\n3\nfour\nfive\n"},
		{"append", "one\ntwo\n", "one\ntwo\nthree\n"},
		{"delete", "one\ntwo\nthree\n", "one\nthree\n"},
		{"from empty", "", "fresh\nfile\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Generate(tt.original, tt.modified, "a", "b")
			parsed, err := Parse(Format(d))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if parsed.OriginalFile != "a" || parsed.ModifiedFile != "b" {
				t.Fatalf("file names lost: %q %q", parsed.OriginalFile, parsed.ModifiedFile)
			}
			if len(parsed.Hunks) != len(d.Hunks) {
				t.Fatalf("hunk count changed: %d -> %d", len(d.Hunks), len(parsed.Hunks))
			}
			for i := range parsed.Hunks {
				if parsed.Hunks[i].OriginalStart != d.Hunks[i].OriginalStart {
					t.Errorf("hunk %d original start %d != %d", i, parsed.Hunks[i].OriginalStart, d.Hunks[i].OriginalStart)
				}
				if len(parsed.Hunks[i].Lines) != len(d.Hunks[i].Lines) {
					t.Errorf("hunk %d line count %d != %d", i, len(parsed.Hunks[i].Lines), len(d.Hunks[i].Lines))
				}
			}
		})
	}
}

func TestParseLineEndingTolerance(t *testing.T) {
	unix := "--- a\n+++ b\n@@ -1,1 +1,1 @@\n-old\n+new\n"
	for _, tt := range []struct {
		name string
		text string
	}{
		{"crlf", strings.ReplaceAll(unix, "\n", "\r\n")},
		{"cr", strings.ReplaceAll(unix, "\n", "\r")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(d.Hunks) != 1 || len(d.Hunks[0].Lines) != 2 {
				t.Fatalf("unexpected shape: %+v", d.Hunks)
			}
		})
	}
}

func TestParseDefaultsHunkLengthToOne(t *testing.T) {
	d, err := Parse("--- a\n+++ b\n@@ -3 +3 @@\n-x\n+y\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	h := d.Hunks[0]
	if h.OriginalLength != 1 || h.ModifiedLength != 1 {
		t.Fatalf("expected default lengths 1,1, got %d,%d", h.OriginalLength, h.ModifiedLength)
	}
}

func TestParseInvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"missing minus header", "+++ b\n@@ -1 +1 @@\n-x\n"},
		{"missing plus header", "--- a\n@@ -1 +1 @@\n-x\n"},
		{"garbage after headers", "--- a\n+++ b\nnot a hunk\n"},
		{"malformed hunk header", "--- a\n+++ b\n@@ bogus @@\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if !mogerr.Is(err, mogerr.InvalidPatchFormat) {
				t.Fatalf("expected InvalidPatchFormat, got %v", err)
			}
		})
	}
}
