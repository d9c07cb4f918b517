package tools

import (
	"os"
	"path/filepath"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

// WriteFile implements write_file: creates parent directories, writes
// bytes, then reads the file back and verifies its SHA-256 matches a
// freshly computed hash of content.
func WriteFile(ctx Context, path, content string) string {
	if ctx.ReadOnly {
		return toolxml.Render(failure("write_file", mogerr.New(mogerr.PermissionDenied, "write_file is disabled in readonly mode")))
	}

	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("write_file", err))
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return toolxml.Render(failure("write_file", mogerr.Wrap(mogerr.PermissionDenied, "failed to create parent directories", err)))
	}

	expected := sha256Hex([]byte(content))
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return toolxml.Render(failure("write_file", mogerr.Wrap(mogerr.PermissionDenied, "failed to write file", err)))
	}

	readBack, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("write_file", mogerr.Wrap(mogerr.FileNotFound, "failed to verify write", err)))
	}
	actual := sha256Hex(readBack)
	if actual != expected {
		return toolxml.Render(failure("write_file", mogerr.New(mogerr.InvalidArguments, "checksum mismatch after write")))
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "write_file",
		Result: toolxml.Result{
			Status:         toolxml.Success,
			AbsolutePath:   absPath,
			SHA256Checksum: actual,
		},
		ContentOnDisk: content,
	})
}
