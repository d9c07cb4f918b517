package toolxml

import (
	"strings"
	"testing"
)

func TestRenderParseRoundTrip(t *testing.T) {
	in := Response{
		ToolName: "write_file",
		Notes:    "wrote 3 lines",
		Result: Result{
			Status:           Success,
			AbsolutePath:     "/tmp/x.txt",
			SHA256Checksum:   "abc123",
			OriginalChecksum: "def456",
		},
		ContentOnDisk: "hello\nworld\n",
	}

	out, err := Parse(Render(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got: %+v\nwant: %+v", out, in)
	}
}

func TestRenderEscapesMarkup(t *testing.T) {
	doc := Render(Response{
		ToolName:      "read_text_file",
		Result:        Result{Status: Success, AbsolutePath: `/tmp/a&b<c>.txt`},
		ContentOnDisk: `<tool_response> & friends`,
	})

	if strings.Contains(doc, "<tool_response> & friends") {
		t.Fatal("content was not escaped")
	}

	out, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.ContentOnDisk != `<tool_response> & friends` {
		t.Fatalf("escaped content did not round trip: %q", out.ContentOnDisk)
	}
	if out.Result.AbsolutePath != `/tmp/a&b<c>.txt` {
		t.Fatalf("escaped attribute did not round trip: %q", out.Result.AbsolutePath)
	}
}

func TestParseDefaults(t *testing.T) {
	t.Run("missing status means success", func(t *testing.T) {
		out, err := Parse(`<tool_response tool_name="ls"><result/></tool_response>`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if out.Result.Status != Success {
			t.Fatalf("expected Success, got %q", out.Result.Status)
		}
	})

	t.Run("error element forces failed", func(t *testing.T) {
		out, err := Parse(`<tool_response tool_name="ls"><result status="SUCCESS"/><error>boom</error></tool_response>`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if out.Result.Status != Failed {
			t.Fatalf("expected Failed, got %q", out.Result.Status)
		}
		if out.Error != "boom" {
			t.Fatalf("expected error text, got %q", out.Error)
		}
	})
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse("<tool_response"); err == nil {
		t.Fatal("expected error for malformed document")
	}
}
