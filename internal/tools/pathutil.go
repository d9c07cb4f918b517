package tools

import (
	"path/filepath"
	"strings"

	"mogzi/internal/mogerr"
)

// resolvePath resolves file against ctx.WorkingDir, rejecting any path
// that normalizes outside the working directory.
func resolvePath(ctx Context, file string) (string, error) {
	rootAbs, err := filepath.Abs(ctx.WorkingDir)
	if err != nil {
		return "", mogerr.Wrap(mogerr.InvalidArguments, "invalid working directory", err)
	}

	var absPath string
	if filepath.IsAbs(file) {
		absPath = file
	} else {
		absPath = filepath.Join(rootAbs, file)
	}
	absPath, err = filepath.Abs(absPath)
	if err != nil {
		return "", mogerr.Wrap(mogerr.InvalidArguments, "invalid file path", err)
	}

	relPath, err := filepath.Rel(rootAbs, absPath)
	if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
		return "", mogerr.New(mogerr.PathOutsideRoot, "path outside working directory: "+file)
	}
	return absPath, nil
}
