// Package tools implements the tool suite: file read/write/edit, listing,
// content search, shell execution, PDF text extraction and unified-diff
// patch operations. Every handler returns a rendered toolxml.Response
// document, so a tool never propagates a raw error upward —
// mirroring the result-sum redesign spec'd for the whole system.
package tools

import (
	"mogzi/internal/config"
	"mogzi/internal/toolcache"
)

// Context carries the state every tool operation needs — working
// directory, read-only mode, the optional result cache — passed
// explicitly rather than read from process-wide globals.
type Context struct {
	WorkingDir    string
	ReadOnly      bool
	ToolApprovals config.ToolsConfig

	// Cache memoizes slow operations (PDF extraction, recursive
	// content scans). May be nil; every lookup then misses.
	Cache *toolcache.Cache
}

// NewContext builds a Context rooted at workingDir.
func NewContext(workingDir string, toolsCfg config.ToolsConfig, cache *toolcache.Cache) Context {
	return Context{
		WorkingDir:    workingDir,
		ReadOnly:      toolsCfg.ReadOnly(),
		ToolApprovals: toolsCfg,
		Cache:         cache,
	}
}
