package tools

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mogzi/internal/config"
	"mogzi/internal/toolxml"
)

func testContext(t *testing.T) (Context, string) {
	t.Helper()
	dir := t.TempDir()
	return NewContext(dir, config.ToolsConfig{}, nil), dir
}

func readOnlyContext(t *testing.T) (Context, string) {
	t.Helper()
	dir := t.TempDir()
	return NewContext(dir, config.ToolsConfig{Approvals: "readonly"}, nil), dir
}

func parseDoc(t *testing.T, doc string) toolxml.Response {
	t.Helper()
	r, err := toolxml.Parse(doc)
	if err != nil {
		t.Fatalf("tool emitted unparseable response: %v\n%s", err, doc)
	}
	return r
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadTextFile(t *testing.T) {
	ctx, dir := testContext(t)
	path := writeTestFile(t, dir, "a.txt", "line1\nline2\nline3\nline4\n")

	t.Run("whole file", func(t *testing.T) {
		r := parseDoc(t, ReadTextFile(ctx, path, 0, 0))
		if r.Result.Status != toolxml.Success {
			t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
		}
		if !strings.Contains(r.ContentOnDisk, "line4") {
			t.Fatalf("content truncated: %q", r.ContentOnDisk)
		}
		if r.Result.SHA256Checksum == "" {
			t.Fatal("missing checksum")
		}
	})

	t.Run("offset and limit select lines", func(t *testing.T) {
		r := parseDoc(t, ReadTextFile(ctx, path, 1, 2))
		if r.ContentOnDisk != "line2\nline3" {
			t.Fatalf("unexpected window: %q", r.ContentOnDisk)
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		r := parseDoc(t, ReadTextFile(ctx, filepath.Join(dir, "nope.txt"), 0, 0))
		if r.Result.Status != toolxml.Failed {
			t.Fatal("expected FAILED")
		}
	})
}

func TestPathOutsideRoot(t *testing.T) {
	ctx, _ := testContext(t)
	outside := "/etc/passwd"

	for _, tt := range []struct {
		name string
		doc  string
	}{
		{"read", ReadTextFile(ctx, outside, 0, 0)},
		{"write", WriteFile(ctx, outside, "x")},
		{"edit", EditFile(ctx, outside, "a", "b", 1)},
		{"list", ListDirectory(ctx, "/etc", "", true)},
		{"relative escape", ReadTextFile(ctx, "../../etc/passwd", 0, 0)},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := parseDoc(t, tt.doc)
			if r.Result.Status != toolxml.Failed {
				t.Fatal("expected FAILED for path outside root")
			}
			if !strings.Contains(r.Error, "PathOutsideRoot") {
				t.Fatalf("expected PathOutsideRoot in error, got %q", r.Error)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	ctx, dir := testContext(t)

	t.Run("creates parents and verifies checksum", func(t *testing.T) {
		r := parseDoc(t, WriteFile(ctx, "sub/deep/out.txt", "payload\n"))
		if r.Result.Status != toolxml.Success {
			t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
		}
		data, err := os.ReadFile(filepath.Join(dir, "sub", "deep", "out.txt"))
		if err != nil {
			t.Fatalf("file missing: %v", err)
		}
		if string(data) != "payload\n" {
			t.Fatalf("content mismatch: %q", data)
		}
	})

	t.Run("readonly refuses", func(t *testing.T) {
		roCtx, roDir := readOnlyContext(t)
		r := parseDoc(t, WriteFile(roCtx, "x.txt", "nope"))
		if r.Result.Status != toolxml.Failed {
			t.Fatal("expected FAILED in readonly mode")
		}
		if _, err := os.Stat(filepath.Join(roDir, "x.txt")); err == nil {
			t.Fatal("readonly mode must not write")
		}
	})
}

func TestEditFile(t *testing.T) {
	t.Run("replaces on exact occurrence count", func(t *testing.T) {
		ctx, dir := testContext(t)
		writeTestFile(t, dir, "e.txt", "aaa needle bbb\n")
		r := parseDoc(t, EditFile(ctx, "e.txt", "needle", "thread", 1))
		if r.Result.Status != toolxml.Success {
			t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
		}
		data, _ := os.ReadFile(filepath.Join(dir, "e.txt"))
		if string(data) != "aaa thread bbb\n" {
			t.Fatalf("content: %q", data)
		}
		if r.Result.OriginalChecksum == "" || r.Result.SHA256Checksum == r.Result.OriginalChecksum {
			t.Fatal("expected distinct before/after checksums")
		}
	})

	t.Run("fails on occurrence mismatch", func(t *testing.T) {
		ctx, dir := testContext(t)
		writeTestFile(t, dir, "e.txt", "dup dup\n")
		r := parseDoc(t, EditFile(ctx, "e.txt", "dup", "x", 1))
		if r.Result.Status != toolxml.Failed {
			t.Fatal("expected FAILED when count differs")
		}
		data, _ := os.ReadFile(filepath.Join(dir, "e.txt"))
		if string(data) != "dup dup\n" {
			t.Fatal("file must be untouched on failure")
		}
	})

	t.Run("honors expected_occurrences", func(t *testing.T) {
		ctx, dir := testContext(t)
		writeTestFile(t, dir, "e.txt", "dup dup\n")
		r := parseDoc(t, EditFile(ctx, "e.txt", "dup", "x", 2))
		if r.Result.Status != toolxml.Success {
			t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
		}
		data, _ := os.ReadFile(filepath.Join(dir, "e.txt"))
		if string(data) != "x x\n" {
			t.Fatalf("content: %q", data)
		}
	})
}

func TestListDirectory(t *testing.T) {
	ctx, dir := testContext(t)
	for _, d := range []string{"zdir", "Adir", "node_modules"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeTestFile(t, dir, "beta.txt", "")
	writeTestFile(t, dir, "alpha.txt", "")
	writeTestFile(t, dir, "junk.log", "")
	writeTestFile(t, dir, "ignored.txt", "")
	writeTestFile(t, dir, ".gitignore", "ignored.txt\n")

	r := parseDoc(t, ListDirectory(ctx, ".", "beta.*", true))
	if r.Result.Status != toolxml.Success {
		t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
	}
	lines := strings.Split(strings.TrimSpace(r.ContentOnDisk), "\n")

	want := []string{"Adir/", "zdir/", ".gitignore", "alpha.txt"}
	if len(lines) != len(want) {
		t.Fatalf("unexpected listing: %q", lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: %q, want %q", i, lines[i], w)
		}
	}
}

func TestSearchFileContent(t *testing.T) {
	ctx, dir := testContext(t)
	writeTestFile(t, dir, "one.go", "package main\nfunc Target() {}\n")
	writeTestFile(t, dir, "two.txt", "nothing here\n")

	r := parseDoc(t, SearchFileContent(ctx, "target", "", ""))
	if r.Result.Status != toolxml.Success {
		t.Fatalf("status: %q (%s)", r.Result.Status, r.Error)
	}
	if !strings.Contains(r.ContentOnDisk, "File: one.go") {
		t.Fatalf("expected grouped file header, got %q", r.ContentOnDisk)
	}
	if !strings.Contains(r.ContentOnDisk, "L2:") {
		t.Fatalf("expected line number, got %q", r.ContentOnDisk)
	}

	t.Run("invalid pattern fails", func(t *testing.T) {
		r := parseDoc(t, SearchFileContent(ctx, "([", "", ""))
		if r.Result.Status != toolxml.Failed {
			t.Fatal("expected FAILED for invalid regex")
		}
	})
}

func TestPatchOps(t *testing.T) {
	ctx, dir := testContext(t)
	writeTestFile(t, dir, "p.txt", "one\ntwo\nthree\n")

	gen := parseDoc(t, GenerateCodePatch(ctx, "p.txt", "one\nTWO\nthree\n"))
	if gen.Result.Status != toolxml.Success {
		t.Fatalf("generate: %q (%s)", gen.Result.Status, gen.Error)
	}
	if !strings.Contains(gen.ContentOnDisk, "-two") || !strings.Contains(gen.ContentOnDisk, "+TWO") {
		t.Fatalf("unexpected patch text: %q", gen.ContentOnDisk)
	}

	prev := parseDoc(t, PreviewPatchApplication(ctx, "p.txt", gen.ContentOnDisk))
	if prev.Result.Status != toolxml.Success {
		t.Fatalf("preview: %q (%s)", prev.Result.Status, prev.Error)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "p.txt")); string(data) != "one\ntwo\nthree\n" {
		t.Fatal("preview must not write")
	}

	applied := parseDoc(t, ApplyCodePatch(ctx, "p.txt", gen.ContentOnDisk, true))
	if applied.Result.Status != toolxml.Success {
		t.Fatalf("apply: %q (%s)", applied.Result.Status, applied.Error)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "p.txt")); string(data) != "one\nTWO\nthree\n" {
		t.Fatalf("apply result: %q", data)
	}

	t.Run("invalid patch fails", func(t *testing.T) {
		r := parseDoc(t, ApplyCodePatch(ctx, "p.txt", "not a patch", true))
		if r.Result.Status != toolxml.Failed {
			t.Fatal("expected FAILED for invalid patch text")
		}
	})
}

func TestReadPDFRejectsNonPDF(t *testing.T) {
	ctx, dir := testContext(t)
	writeTestFile(t, dir, "fake.pdf", "this is not a pdf")
	r := parseDoc(t, ReadPDFFile(ctx, filepath.Join(dir, "fake.pdf")))
	if r.Result.Status != toolxml.Failed {
		t.Fatal("expected FAILED for missing %PDF- header")
	}
}
