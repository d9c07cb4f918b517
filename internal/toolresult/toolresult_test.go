package toolresult

import (
	"testing"

	"mogzi/internal/diffmodel"
)

func TestParse(t *testing.T) {
	doc := `<tool_response tool_name="write_file"><notes>wrote it</notes><result status="SUCCESS" absolute_path="/tmp/x"/><content_on_disk>hello</content_on_disk></tool_response>`
	info, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.ToolName != "write_file" || info.Status != Success {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.FilePath != "/tmp/x" || info.NewContent != "hello" {
		t.Fatalf("unexpected file fields: %+v", info)
	}
	if info.RawResponse != doc {
		t.Fatal("raw response not preserved")
	}

	t.Run("error forces failed", func(t *testing.T) {
		info, err := Parse(`<tool_response tool_name="x"><result status="SUCCESS"/><error>bad</error></tool_response>`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if info.Status != Failed || info.ErrorMessage != "bad" {
			t.Fatalf("unexpected: %+v", info)
		}
	})
}

func strptr(s string) *string { return &s }

func TestDisplayDiff(t *testing.T) {
	tests := []struct {
		name     string
		original *string
		modified string
		wantNil  bool
		allAdded bool
	}{
		{"both known and different", strptr("a\n"), "b\n", false, false},
		{"identical content", strptr("same\n"), "same\n", true, false},
		{"unknown original", nil, "fresh\n", false, true},
		{"unknown original empty new", nil, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DisplayDiff(tt.original, tt.modified, "f.txt")
			if tt.wantNil {
				if d != nil {
					t.Fatalf("expected nil diff, got %+v", d)
				}
				return
			}
			if d == nil {
				t.Fatal("expected a diff")
			}
			if tt.allAdded {
				for _, h := range d.Hunks {
					for _, l := range h.Lines {
						if l.Kind != diffmodel.Added {
							t.Fatalf("expected only Added lines, got %v", l.Kind)
						}
					}
				}
			}
		})
	}
}
