package tools

import (
	"fmt"
	"os"

	"mogzi/internal/diffmodel"
	"mogzi/internal/mogerr"
	"mogzi/internal/patch"
	"mogzi/internal/toolxml"
)

// ApplyCodePatch implements apply_code_patch: parses patchText as a
// unified diff and applies it to path via internal/patch, defaulting to
// fuzzy matching.
func ApplyCodePatch(ctx Context, path, patchText string, useFuzzyMatching bool) string {
	if ctx.ReadOnly {
		return toolxml.Render(failure("apply_code_patch", mogerr.New(mogerr.PermissionDenied, "apply_code_patch is disabled in readonly mode")))
	}

	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("apply_code_patch", err))
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("apply_code_patch", mogerr.Wrap(mogerr.FileNotFound, "failed to read file", err)))
	}

	d, err := diffmodel.Parse(patchText)
	if err != nil {
		return toolxml.Render(failure("apply_code_patch", err))
	}

	result := patch.Apply(string(original), d, useFuzzyMatching)
	if !result.Success {
		msg := result.Error
		if result.ConflictingHunk != nil {
			msg = fmt.Sprintf("%s (hunk at original line %d)", msg, result.ConflictingHunk.OriginalStart)
		}
		return toolxml.Render(failure("apply_code_patch", mogerr.New(mogerr.PatchConflict, msg)))
	}

	if err := os.WriteFile(absPath, []byte(result.ModifiedContent), 0o644); err != nil {
		return toolxml.Render(failure("apply_code_patch", mogerr.Wrap(mogerr.PermissionDenied, "failed to write file", err)))
	}

	notes := fmt.Sprintf("+%d -%d lines", result.TotalLinesAdded, result.TotalLinesRemoved)
	if result.AppliedWithFuzzy {
		notes += fmt.Sprintf(", fuzzy strategy=%s", result.FuzzyStrategy)
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "apply_code_patch",
		Notes:    notes,
		Result: toolxml.Result{
			Status:           toolxml.Success,
			AbsolutePath:     absPath,
			SHA256Checksum:   sha256Hex([]byte(result.ModifiedContent)),
			OriginalChecksum: sha256Hex(original),
		},
		ContentOnDisk: result.ModifiedContent,
	})
}

// GenerateCodePatch implements generate_code_patch: diffs the file's
// current on-disk content against modifiedContent and returns unified
// diff text via internal/diffmodel.
func GenerateCodePatch(ctx Context, path, modifiedContent string) string {
	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("generate_code_patch", err))
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("generate_code_patch", mogerr.Wrap(mogerr.FileNotFound, "failed to read file", err)))
	}

	d := diffmodel.Generate(string(original), modifiedContent, path, path)
	formatted := diffmodel.Format(d)

	return toolxml.Render(toolxml.Response{
		ToolName:      "generate_code_patch",
		Result:        toolxml.Result{Status: toolxml.Success, AbsolutePath: absPath},
		ContentOnDisk: formatted,
	})
}

// PreviewPatchApplication implements preview_patch_application: like
// ApplyCodePatch but never writes to disk, returning the would-be
// result so a caller can show it before committing.
func PreviewPatchApplication(ctx Context, path, patchText string) string {
	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("preview_patch_application", err))
	}

	original, err := os.ReadFile(absPath)
	if err != nil {
		return toolxml.Render(failure("preview_patch_application", mogerr.Wrap(mogerr.FileNotFound, "failed to read file", err)))
	}

	d, err := diffmodel.Parse(patchText)
	if err != nil {
		return toolxml.Render(failure("preview_patch_application", err))
	}

	result := patch.Apply(string(original), d, true)
	if !result.Success {
		msg := result.Error
		if result.ConflictingHunk != nil {
			msg = fmt.Sprintf("%s (hunk at original line %d)", msg, result.ConflictingHunk.OriginalStart)
		}
		return toolxml.Render(failure("preview_patch_application", mogerr.New(mogerr.PatchConflict, msg)))
	}

	return toolxml.Render(toolxml.Response{
		ToolName:      "preview_patch_application",
		Result:        toolxml.Result{Status: toolxml.Success, AbsolutePath: absPath},
		ContentOnDisk: result.ModifiedContent,
	})
}
