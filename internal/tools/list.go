package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mogzi/internal/toolxml"
)

type dirEntryInfo struct {
	name  string
	isDir bool
}

// ListDirectory implements list_directory: sorts entries
// directory-first then case-insensitive name, applying a
// comma-separated glob ignore list, the built-in ignore set, and (when
// respectGitIgnore) patterns from a .gitignore at the working
// directory root.
func ListDirectory(ctx Context, path, ignore string, respectGitIgnore bool) string {
	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("list_directory", err))
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return toolxml.Render(failure("list_directory", err))
	}

	var ignoreGlobs []string
	if ignore != "" {
		for _, g := range strings.Split(ignore, ",") {
			if g = strings.TrimSpace(g); g != "" {
				ignoreGlobs = append(ignoreGlobs, g)
			}
		}
	}

	var gi *gitignoreMatcher
	if respectGitIgnore {
		gi = loadGitignore(ctx.WorkingDir)
	}

	var kept []dirEntryInfo
	for _, e := range entries {
		name := e.Name()
		if builtinIgnore[name] || builtinIgnoreGlob(name) {
			continue
		}
		skip := false
		for _, g := range ignoreGlobs {
			if ok, _ := filepath.Match(g, name); ok {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if gi != nil {
			rel, relErr := filepath.Rel(ctx.WorkingDir, filepath.Join(absPath, name))
			if relErr == nil && gi.matches(rel, e.IsDir()) {
				continue
			}
		}
		kept = append(kept, dirEntryInfo{name: name, isDir: e.IsDir()})
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].isDir != kept[j].isDir {
			return kept[i].isDir
		}
		return strings.ToLower(kept[i].name) < strings.ToLower(kept[j].name)
	})

	var b strings.Builder
	for _, e := range kept {
		if e.isDir {
			fmt.Fprintf(&b, "%s/\n", e.name)
		} else {
			fmt.Fprintf(&b, "%s\n", e.name)
		}
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "list_directory",
		Result: toolxml.Result{
			Status:       toolxml.Success,
			AbsolutePath: absPath,
		},
		ContentOnDisk: b.String(),
	})
}
