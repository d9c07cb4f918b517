package tools

import (
	"os"
	"strings"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

const defaultReadLimit = 5000

// ReadTextFile implements read_text_file: returns up to limit lines
// starting at offset when both are set, otherwise up to limit
// characters from the whole file, along with a SHA-256 of the returned
// content.
func ReadTextFile(ctx Context, path string, offset, limit int) string {
	if limit <= 0 {
		limit = defaultReadLimit
	}

	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("read_text_file", err))
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("read_text_file", mogerr.Wrap(mogerr.FileNotFound, "failed to read file", err)))
	}

	var content string
	if offset > 0 {
		lines := strings.Split(string(data), "\n")
		start := offset
		if start > len(lines) {
			start = len(lines)
		}
		end := start + limit
		if end > len(lines) {
			end = len(lines)
		}
		content = strings.Join(lines[start:end], "\n")
	} else {
		runes := []rune(string(data))
		if len(runes) > limit {
			runes = runes[:limit]
		}
		content = string(runes)
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "read_text_file",
		Result: toolxml.Result{
			Status:         toolxml.Success,
			AbsolutePath:   absPath,
			SHA256Checksum: sha256Hex([]byte(content)),
		},
		ContentOnDisk: content,
	})
}

func failure(tool string, err error) toolxml.Response {
	return toolxml.Response{
		ToolName: tool,
		Result:   toolxml.Result{Status: toolxml.Failed},
		Error:    err.Error(),
	}
}
