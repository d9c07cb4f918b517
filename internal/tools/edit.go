package tools

import (
	"fmt"
	"os"
	"strings"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

// EditFile implements edit_file/replace: the file must contain exactly
// expectedOccurrences occurrences of oldString (default 1) or the edit
// fails before any write.
func EditFile(ctx Context, path, oldString, newString string, expectedOccurrences int) string {
	if ctx.ReadOnly {
		return toolxml.Render(failure("edit_file", mogerr.New(mogerr.PermissionDenied, "edit_file is disabled in readonly mode")))
	}
	if expectedOccurrences <= 0 {
		expectedOccurrences = 1
	}

	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("edit_file", err))
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("edit_file", mogerr.Wrap(mogerr.FileNotFound, "failed to read file", err)))
	}
	originalChecksum := sha256Hex(original)

	count := strings.Count(string(original), oldString)
	if count != expectedOccurrences {
		return toolxml.Render(failure("edit_file", mogerr.New(
			mogerr.InvalidArguments,
			fmt.Sprintf("expected %d occurrence(s) of old_string, found %d", expectedOccurrences, count),
		)))
	}

	updated := strings.Replace(string(original), oldString, newString, expectedOccurrences)
	if err := os.WriteFile(absPath, []byte(updated), 0o644); err != nil {
		return toolxml.Render(failure("edit_file", mogerr.Wrap(mogerr.PermissionDenied, "failed to write file", err)))
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "edit_file",
		Result: toolxml.Result{
			Status:           toolxml.Success,
			AbsolutePath:     absPath,
			SHA256Checksum:   sha256Hex([]byte(updated)),
			OriginalChecksum: originalChecksum,
		},
		ContentOnDisk: updated,
	})
}
