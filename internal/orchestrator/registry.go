// Package orchestrator wires the AI provider stream, the tool suite,
// the session history and the chat state machine together: it drives
// each submit from user text through streaming deltas and tool rounds
// back to the Input state.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"mogzi/internal/tools"
)

// toolSpec pairs a provider-facing tool declaration with the function
// that executes it against internal/tools, returning the XML
// tool-response document.
type toolSpec struct {
	name        string
	description string
	schema      json.RawMessage
	run         func(ctx context.Context, args json.RawMessage) string
}

// editTools names the tools whose call arguments name a file that is
// about to be mutated; pre-edit content is cached for exactly these so
// a display diff can be built once the result arrives.
var editTools = map[string]bool{
	"replace":   true,
	"edit_file": true,
	"editfile":  true,
	"edit":      true,
}

func isEditTool(name string) bool { return editTools[name] }

// diffDisplayTools additionally includes the patch applicator: its
// result is rendered as a diff against the captured pre-edit content,
// while write-type tools get a content preview instead.
var diffDisplayTools = map[string]bool{
	"replace":          true,
	"edit_file":        true,
	"editfile":         true,
	"edit":             true,
	"apply_code_patch": true,
}

func isDiffDisplayTool(name string) bool { return diffDisplayTools[name] }

type readTextFileArgs struct {
	AbsolutePath string `json:"absolute_path"`
	Offset       int    `json:"offset"`
	Limit        int    `json:"limit"`
}

type readPDFArgs struct {
	AbsolutePath string `json:"absolute_path"`
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type editFileArgs struct {
	Path                string `json:"path"`
	OldString           string `json:"old_string"`
	NewString           string `json:"new_string"`
	ExpectedOccurrences int    `json:"expected_occurrences"`
}

type listDirectoryArgs struct {
	Path             string `json:"path"`
	Ignore           string `json:"ignore"`
	RespectGitIgnore *bool  `json:"respect_git_ignore"`
}

type searchFileContentArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Include string `json:"include"`
}

type runShellCommandArgs struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Directory   string `json:"directory"`
}

type applyCodePatchArgs struct {
	Path             string `json:"path"`
	Patch            string `json:"patch"`
	UseFuzzyMatching *bool  `json:"use_fuzzy_matching"`
}

type generateCodePatchArgs struct {
	Path            string `json:"path"`
	ModifiedContent string `json:"modified_content"`
}

type updatePlanArgs struct {
	Content string `json:"content"`
}

type previewPatchArgs struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

// buildToolSpecs returns the fixed tool table, bound to toolsCtx,
// shell and the plan scratchpad.
func buildToolSpecs(toolsCtx tools.Context, shell *tools.Shell, pad *Scratchpad) []toolSpec {
	return []toolSpec{
		{
			name:        "update_plan",
			description: "Replace your working plan/notes. The content is re-sent with every request; rewrite it as steps complete.",
			schema:      schemaObject(`{"content":{"type":"string"}}`, "content"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a updatePlanArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("update_plan", err)
				}
				if a.Content == "" {
					return fmt.Sprintf(`<tool_response tool_name=%q><result status="FAILED"/><error>content cannot be empty</error></tool_response>`, "update_plan")
				}
				pad.Replace(a.Content)
				return fmt.Sprintf(`<tool_response tool_name=%q><notes>plan updated</notes><result status="SUCCESS"/></tool_response>`, "update_plan")
			},
		},
		{
			name:        "read_text_file",
			description: "Read a text file by absolute path, optionally a line window.",
			schema:      schemaObject(`{"absolute_path":{"type":"string"},"offset":{"type":"integer"},"limit":{"type":"integer"}}`, "absolute_path"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a readTextFileArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("read_text_file", err)
				}
				return tools.ReadTextFile(toolsCtx, a.AbsolutePath, a.Offset, a.Limit)
			},
		},
		{
			name:        "read_pdf_file",
			description: "Extract text from a PDF file by absolute path.",
			schema:      schemaObject(`{"absolute_path":{"type":"string"}}`, "absolute_path"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a readPDFArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("read_pdf_file", err)
				}
				return tools.ReadPDFFile(toolsCtx, a.AbsolutePath)
			},
		},
		{
			name:        "write_file",
			description: "Write content to a file, creating parent directories as needed.",
			schema:      schemaObject(`{"path":{"type":"string"},"content":{"type":"string"}}`, "path", "content"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a writeFileArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("write_file", err)
				}
				return tools.WriteFile(toolsCtx, a.Path, a.Content)
			},
		},
		{
			name:        "edit_file",
			description: "Replace old_string with new_string in a file, enforcing an exact occurrence count.",
			schema:      schemaObject(`{"path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"},"expected_occurrences":{"type":"integer"}}`, "path", "old_string", "new_string"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a editFileArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("edit_file", err)
				}
				return tools.EditFile(toolsCtx, a.Path, a.OldString, a.NewString, a.ExpectedOccurrences)
			},
		},
		{
			name:        "list_directory",
			description: "List a directory's entries, directories first, honoring .gitignore.",
			schema:      schemaObject(`{"path":{"type":"string"},"ignore":{"type":"string"},"respect_git_ignore":{"type":"boolean"}}`, "path"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a listDirectoryArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("list_directory", err)
				}
				respect := true
				if a.RespectGitIgnore != nil {
					respect = *a.RespectGitIgnore
				}
				return tools.ListDirectory(toolsCtx, a.Path, a.Ignore, respect)
			},
		},
		{
			name:        "search_file_content",
			description: "Search file contents for a case-insensitive regular expression.",
			schema:      schemaObject(`{"pattern":{"type":"string"},"path":{"type":"string"},"include":{"type":"string"}}`, "pattern"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a searchFileContentArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("search_file_content", err)
				}
				return tools.SearchFileContent(toolsCtx, a.Pattern, a.Path, a.Include)
			},
		},
		{
			name:        "run_shell_command",
			description: "Run a shell command, capturing stdout/stderr with ANSI escapes stripped.",
			schema:      schemaObject(`{"command":{"type":"string"},"description":{"type":"string"},"directory":{"type":"string"}}`, "command"),
			run: func(ctx context.Context, raw json.RawMessage) string {
				var a runShellCommandArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("run_shell_command", err)
				}
				return shell.RunShellCommand(ctx, toolsCtx, a.Command, a.Directory)
			},
		},
		{
			name:        "apply_code_patch",
			description: "Apply a unified diff to a file, with fuzzy matching by default.",
			schema:      schemaObject(`{"path":{"type":"string"},"patch":{"type":"string"},"use_fuzzy_matching":{"type":"boolean"}}`, "path", "patch"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a applyCodePatchArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("apply_code_patch", err)
				}
				fuzzy := true
				if a.UseFuzzyMatching != nil {
					fuzzy = *a.UseFuzzyMatching
				}
				return tools.ApplyCodePatch(toolsCtx, a.Path, a.Patch, fuzzy)
			},
		},
		{
			name:        "generate_code_patch",
			description: "Generate a unified diff between a file's current content and modified_content.",
			schema:      schemaObject(`{"path":{"type":"string"},"modified_content":{"type":"string"}}`, "path", "modified_content"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a generateCodePatchArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("generate_code_patch", err)
				}
				return tools.GenerateCodePatch(toolsCtx, a.Path, a.ModifiedContent)
			},
		},
		{
			name:        "preview_patch_application",
			description: "Show the content a unified diff would produce, or the conflict, without writing.",
			schema:      schemaObject(`{"path":{"type":"string"},"patch":{"type":"string"}}`, "path", "patch"),
			run: func(_ context.Context, raw json.RawMessage) string {
				var a previewPatchArgs
				if err := json.Unmarshal(raw, &a); err != nil {
					return argError("preview_patch_application", err)
				}
				return tools.PreviewPatchApplication(toolsCtx, a.Path, a.Patch)
			},
		},
	}
}

func schemaObject(properties string, required ...string) json.RawMessage {
	req, _ := json.Marshal(required)
	return json.RawMessage(fmt.Sprintf(`{"type":"object","properties":%s,"required":%s}`, properties, req))
}

func argError(tool string, err error) string {
	return fmt.Sprintf(`<tool_response tool_name=%q><result status="FAILED"/><error>invalid arguments: %s</error></tool_response>`, tool, err.Error())
}

// keyArgSummary picks the most informative argument from a tool call's
// JSON arguments for the "{tool} → {key_arg_summary}" progress label,
// truncated to 25 characters.
func keyArgSummary(raw json.RawMessage) string {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return ""
	}
	for _, key := range []string{"command", "path", "absolute_path", "pattern"} {
		if v, ok := generic[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return truncate(s, 25)
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
