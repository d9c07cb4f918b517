package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

var searchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "bower_components": true,
	".svn": true, ".hg": true,
}

type grepMatch struct {
	path string
	line int
	text string
}

// SearchFileContent implements search_file_content: a case-insensitive
// regex search across the working directory (or path, if given),
// optionally restricted to files matching include, tiered git grep →
// system grep → in-process recursive scan.
func SearchFileContent(ctx Context, pattern, path, include string) string {
	root := ctx.WorkingDir
	if path != "" {
		resolved, err := resolvePath(ctx, path)
		if err != nil {
			return toolxml.Render(failure("search_file_content", err))
		}
		root = resolved
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return toolxml.Render(failure("search_file_content", mogerr.Wrap(mogerr.InvalidArguments, "invalid pattern", err)))
	}

	matches, err := searchGitGrep(root, pattern, include)
	if err != nil {
		matches, err = searchSystemGrep(root, pattern, include)
	}
	var grouped string
	if err == nil {
		grouped = formatGroupedMatches(matches)
	} else {
		// The in-process walk is the slow tier; memoize it.
		cacheKey := fmt.Sprintf("grep:%s\x00%s\x00%s", root, pattern, include)
		if cached, ok := ctx.Cache.Get(cacheKey); ok {
			grouped = cached
		} else {
			matches, err = searchInProcess(root, re, include)
			if err != nil {
				return toolxml.Render(failure("search_file_content", err))
			}
			grouped = formatGroupedMatches(matches)
			ctx.Cache.Set(cacheKey, grouped)
		}
	}

	return toolxml.Render(toolxml.Response{
		ToolName:      "search_file_content",
		Result:        toolxml.Result{Status: toolxml.Success, AbsolutePath: root},
		ContentOnDisk: grouped,
	})
}

func formatGroupedMatches(matches []grepMatch) string {
	var b strings.Builder
	lastPath := ""
	for _, m := range matches {
		if m.path != lastPath {
			fmt.Fprintf(&b, "File: %s\n", m.path)
			lastPath = m.path
		}
		fmt.Fprintf(&b, "L%d: %s\n", m.line, m.text)
	}
	return b.String()
}

func searchGitGrep(root, pattern, include string) ([]grepMatch, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args := []string{"grep", "-n", "-i", "-I", "-e", pattern}
	if include != "" {
		args = append(args, "--", include)
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 1 {
			return nil, nil // no matches, not a tool failure
		}
		return nil, err
	}
	return parseGrepLines(out.String(), ":"), nil
}

func searchSystemGrep(root, pattern, include string) ([]grepMatch, error) {
	if _, err := exec.LookPath("grep"); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	args := []string{"-rn", "-I", "-i", "-e", pattern}
	if include != "" {
		args = append(args, "--include="+include)
	}
	args = append(args, ".")
	cmd := exec.CommandContext(ctx, "grep", args...)
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}
	return parseGrepLines(out.String(), ":"), nil
}

func parseGrepLines(output, sep string) []grepMatch {
	var matches []grepMatch
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, sep, 3)
		if len(parts) != 3 {
			continue
		}
		lineNo := 0
		fmt.Sscanf(parts[1], "%d", &lineNo)
		matches = append(matches, grepMatch{path: strings.TrimPrefix(parts[0], "./"), line: lineNo, text: parts[2]})
	}
	return matches
}

func searchInProcess(root string, re *regexp.Regexp, include string) ([]grepMatch, error) {
	var matches []grepMatch
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if searchSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if include != "" {
			if ok, _ := filepath.Match(include, d.Name()); !ok {
				return nil
			}
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		f, openErr := os.Open(p)
		if openErr != nil {
			return nil
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if strings.Contains(line, "\x00") {
				return nil
			}
			if re.MatchString(line) {
				matches = append(matches, grepMatch{path: rel, line: lineNo, text: line})
			}
		}
		return nil
	})
	return matches, err
}
