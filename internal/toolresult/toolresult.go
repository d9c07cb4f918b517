// Package toolresult parses tool-response documents produced by
// internal/tools and, for file-modification tools, builds a display
// diff by comparing pre- and post-execution content.
package toolresult

import (
	"mogzi/internal/diffmodel"
	"mogzi/internal/toolxml"
)

// Status mirrors toolxml.Status for callers that don't want to import
// toolxml directly.
type Status = toolxml.Status

const (
	Success = toolxml.Success
	Failed  = toolxml.Failed
)

// Info is the parsed, display-ready view of a tool-response document.
type Info struct {
	ToolName     string
	Status       Status
	Description  string
	Summary      string
	ErrorMessage string
	FilePath     string
	NewContent   string
	RawResponse  string
}

// Parse decodes doc into an Info. The raw document is always preserved
// in RawResponse for callers that want to fall back to it.
func Parse(doc string) (Info, error) {
	r, err := toolxml.Parse(doc)
	if err != nil {
		return Info{}, err
	}
	return Info{
		ToolName:     r.ToolName,
		Status:       r.Result.Status,
		Description:  r.Notes,
		Summary:      r.Notes,
		ErrorMessage: r.Error,
		FilePath:     r.Result.AbsolutePath,
		NewContent:   r.ContentOnDisk,
		RawResponse:  doc,
	}, nil
}

// DisplayDiff builds the diff to render for a file-modification tool
// result, or nil when there's nothing meaningful to diff:
//   - both original and new known and different -> diff between them
//   - original unknown (nil) and new present -> diff against empty
//   - otherwise -> nil
func DisplayDiff(original *string, newContent string, filePath string) *diffmodel.UnifiedDiff {
	if original == nil {
		if newContent == "" {
			return nil
		}
		d := diffmodel.Generate("", newContent, filePath, filePath)
		return &d
	}
	if *original == newContent {
		return nil
	}
	d := diffmodel.Generate(*original, newContent, filePath, filePath)
	return &d
}
