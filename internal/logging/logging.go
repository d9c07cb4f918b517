// Package logging wires the global zerolog logger to an append-only
// file under the data directory. The terminal itself belongs to the
// scrollback renderer, so nothing is ever logged to stdout/stderr after
// startup.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mogzi/internal/config"
)

// Setup points the global logger at {dataDir}/logs/mogzi.log, creating
// the directory as needed. Callers treat a failure as a warning, not a
// fatal error: the assistant still works without a log file.
func Setup() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, "mogzi.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}
