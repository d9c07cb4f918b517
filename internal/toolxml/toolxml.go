// Package toolxml defines the tool-response wire document every tool in
// internal/tools emits and internal/toolresult parses: a small XML
// envelope carrying a status, optional file metadata, the tool's prose
// notes and, on success, the content it produced or wrote.
package toolxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Status is the closed set of outcomes a tool response reports.
type Status string

const (
	Success Status = "SUCCESS"
	Failed  Status = "FAILED"
)

// Result carries the optional attributes of the <result> element.
type Result struct {
	Status            Status
	AbsolutePath      string
	SHA256Checksum    string
	OriginalChecksum  string
}

// Response is the full tool-response document.
type Response struct {
	ToolName      string
	Notes         string
	Result        Result
	ContentOnDisk string
	Error         string
}

// Render serializes r as the tool-response XML document described in
// the tool suite's wire contract. Every interpolated value is
// XML-escaped via xml.EscapeText so tool output containing `<`, `&` or
// raw control bytes can never break the envelope.
func Render(r Response) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<tool_response tool_name="%s">`, escapeAttr(r.ToolName))
	if r.Notes != "" {
		b.WriteString("<notes>")
		escapeText(&b, r.Notes)
		b.WriteString("</notes>")
	}
	b.WriteString(`<result status="`)
	b.WriteString(string(r.Result.Status))
	b.WriteString(`"`)
	if r.Result.AbsolutePath != "" {
		fmt.Fprintf(&b, ` absolute_path="%s"`, escapeAttr(r.Result.AbsolutePath))
	}
	if r.Result.SHA256Checksum != "" {
		fmt.Fprintf(&b, ` sha256_checksum="%s"`, escapeAttr(r.Result.SHA256Checksum))
	}
	if r.Result.OriginalChecksum != "" {
		fmt.Fprintf(&b, ` original_checksum="%s"`, escapeAttr(r.Result.OriginalChecksum))
	}
	b.WriteString(`/>`)
	if r.ContentOnDisk != "" {
		b.WriteString("<content_on_disk>")
		escapeText(&b, r.ContentOnDisk)
		b.WriteString("</content_on_disk>")
	}
	if r.Error != "" {
		b.WriteString("<error>")
		escapeText(&b, r.Error)
		b.WriteString("</error>")
	}
	b.WriteString("</tool_response>")
	return b.String()
}

func escapeText(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	escapeText(&b, s)
	return b.String()
}

// rawResponse mirrors Response's shape for decoding via encoding/xml,
// whose struct tags cannot express attribute defaults the way Render's
// hand-built writer does.
type rawResponse struct {
	XMLName xml.Name `xml:"tool_response"`
	ToolName string  `xml:"tool_name,attr"`
	Notes    string  `xml:"notes"`
	Result   struct {
		Status           string `xml:"status,attr"`
		AbsolutePath     string `xml:"absolute_path,attr"`
		SHA256Checksum   string `xml:"sha256_checksum,attr"`
		OriginalChecksum string `xml:"original_checksum,attr"`
	} `xml:"result"`
	ContentOnDisk string `xml:"content_on_disk"`
	Error         string `xml:"error"`
}

// Parse decodes a tool-response document back into a Response. A
// missing status attribute defaults to Success; the presence of a
// non-empty <error> element forces Failed regardless of what the
// status attribute said.
func Parse(doc string) (Response, error) {
	var raw rawResponse
	if err := xml.Unmarshal([]byte(doc), &raw); err != nil {
		return Response{}, fmt.Errorf("parse tool response: %w", err)
	}

	status := Status(raw.Result.Status)
	if status == "" {
		status = Success
	}
	if raw.Error != "" {
		status = Failed
	}

	return Response{
		ToolName: raw.ToolName,
		Notes:    raw.Notes,
		Result: Result{
			Status:           status,
			AbsolutePath:     raw.Result.AbsolutePath,
			SHA256Checksum:   raw.Result.SHA256Checksum,
			OriginalChecksum: raw.Result.OriginalChecksum,
		},
		ContentOnDisk: raw.ContentOnDisk,
		Error:         raw.Error,
	}, nil
}
