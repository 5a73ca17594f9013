// Package memory persists each agent's cross-game memory as one plain-text
// file per player. The file is read in full at agent construction and fully
// overwritten by the post-game reflection pass.
package memory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	arenaerrors "github.com/jllopis/mafiarena/pkg/errors"
)

// Store is a directory of per-player memory files.
type Store struct {
	dir string
}

// NewStore creates a memory store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the memory file for a player.
func (s *Store) Path(player string) string {
	return filepath.Join(s.dir, player+".txt")
}

// Load reads a player's memory. A missing file yields empty memory, not an
// error.
func (s *Store) Load(player string) (string, error) {
	data, err := os.ReadFile(s.Path(player))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", arenaerrors.New(arenaerrors.CodeMemory, "failed to load memory", err).
			WithContext("player", player)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save overwrites a player's memory with the given text.
func (s *Store) Save(player, text string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return arenaerrors.New(arenaerrors.CodeMemory, "failed to create memory dir", err)
	}
	if err := os.WriteFile(s.Path(player), []byte(text), 0o644); err != nil {
		return arenaerrors.New(arenaerrors.CodeMemory, "failed to save memory", err).
			WithContext("player", player)
	}
	return nil
}
