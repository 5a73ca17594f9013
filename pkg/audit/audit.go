// Package audit appends a human-readable record of every backend round
// trip to a per-player history file. The trail is written before any
// outcome propagates, so a failed call is never invisible.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const separator = 80

// Log writes per-player, append-only audit files under a single directory
// for the lifetime of the process run.
type Log struct {
	dir string
}

// NewLog creates an audit log rooted at dir.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// Path returns the history file for a player.
func (l *Log) Path(player string) string {
	return filepath.Join(l.dir, player+"_history.txt")
}

// Record appends one prompt/response section for a turn.
func (l *Log) Record(player string, turn int, prompt, response string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.Path(player), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	sep := strings.Repeat("-", separator)
	_, err = fmt.Fprintf(file, "\n--- Turn %d ---\nPROMPT:\n%s\n%s\n\nRESPONSE:\n%s\n%s\n",
		turn, prompt, sep, response, sep)
	return err
}

// RecordError appends a section whose response text is the error message.
func (l *Log) RecordError(player string, turn int, prompt string, cause error) error {
	return l.Record(player, turn, prompt, fmt.Sprintf("ERROR: %v", cause))
}
