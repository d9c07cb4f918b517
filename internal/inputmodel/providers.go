package inputmodel

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CommandSpec is the minimal shape SlashCommandProvider needs from a
// command catalog; callers pass in internal/slashcmd's catalog without
// inputmodel importing that package (which would create a cycle, since
// slashcmd's UserSelection handlers need inputmodel's provider types).
type CommandSpec struct {
	Name        string
	Description string
}

// SlashCommandProvider triggers when the buffer begins with `/` and the
// cursor sits within the first (command-name) token, offering the
// catalog filtered by prefix.
type SlashCommandProvider struct {
	catalog []CommandSpec
}

// NewSlashCommandProvider builds a provider over catalog.
func NewSlashCommandProvider(catalog []CommandSpec) *SlashCommandProvider {
	return &SlashCommandProvider{catalog: catalog}
}

func (p *SlashCommandProvider) Triggered(input string, cursor int) (int, int, bool) {
	if !strings.HasPrefix(input, "/") {
		return 0, 0, false
	}
	end := strings.IndexByte(input, ' ')
	if end == -1 {
		end = len(input)
	}
	if cursor > end {
		return 0, 0, false
	}
	return 0, end, true
}

func (p *SlashCommandProvider) Suggest(partial string) []CompletionItem {
	partial = strings.TrimPrefix(partial, "/")
	var out []CompletionItem
	for _, c := range p.catalog {
		if strings.HasPrefix(c.Name, partial) {
			out = append(out, CompletionItem{Label: "/" + c.Name, Description: c.Description})
		}
	}
	return out
}

const (
	maxFilePathDirs  = 20
	maxFilePathFiles = 20
)

// FilePathProvider triggers when an `@` precedes the cursor with only
// non-whitespace characters between, offering directories (suffixed
// `/`) then files under the working directory whose basename matches
// the partial, confined to the working directory.
type FilePathProvider struct {
	workingDir string
}

// NewFilePathProvider builds a provider rooted at workingDir.
func NewFilePathProvider(workingDir string) *FilePathProvider {
	return &FilePathProvider{workingDir: workingDir}
}

func (p *FilePathProvider) Triggered(input string, cursor int) (int, int, bool) {
	runes := []rune(input)
	if cursor > len(runes) {
		return 0, 0, false
	}
	at := -1
	for i := cursor - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\t' {
			break
		}
		if runes[i] == '@' {
			at = i
			break
		}
	}
	if at == -1 {
		return 0, 0, false
	}
	return at, cursor, true
}

func (p *FilePathProvider) Suggest(partial string) []CompletionItem {
	partial = strings.TrimPrefix(partial, "@")
	dir := p.workingDir
	base := partial
	if idx := strings.LastIndexByte(partial, '/'); idx != -1 {
		dir = filepath.Join(p.workingDir, partial[:idx])
		base = partial[idx+1:]
	}
	if rel, err := filepath.Rel(p.workingDir, dir); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var dirs, files []CompletionItem
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(strings.ToLower(name), strings.ToLower(base)) {
			continue
		}
		rel := name
		if prefixDir := filepath.Dir(partial); prefixDir != "." {
			rel = filepath.Join(prefixDir, name)
		}
		if e.IsDir() {
			if len(dirs) < maxFilePathDirs {
				dirs = append(dirs, CompletionItem{Label: "@" + rel + "/"})
			}
		} else if len(files) < maxFilePathFiles {
			files = append(files, CompletionItem{Label: "@" + rel})
		}
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Label < dirs[j].Label })
	sort.Slice(files, func(i, j int) bool { return files[i].Label < files[j].Label })

	return append(dirs, files...)
}
