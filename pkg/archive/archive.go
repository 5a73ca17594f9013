// Package archive persists finished games and every accepted decision in
// SQLite, so runs can be analyzed after the per-player text logs scroll by.
package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
)

// Archive is a SQLite-backed store of games and decisions.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database and ensures the schema.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "opening archive database", err).
			WithContext("path", path)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, errors.New(errors.CodeConfiguration, "creating archive schema", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Game is one archived run.
type Game struct {
	ID         string
	Mode       game.Mode
	Winner     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Decision is one archived accepted decision.
type Decision struct {
	GameID   string
	Turn     int
	Phase    game.Phase
	Player   string
	Strategy string
	Speech   string
	Vote     string
	VotedNil bool
}

// BeginGame records the start of a run and returns its id.
func (a *Archive) BeginGame(ctx context.Context, mode game.Mode) (string, error) {
	id := uuid.NewString()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO games (id, mode, started_at) VALUES (?, ?, ?)
	`, id, string(mode), time.Now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishGame records the winner and finish time.
func (a *Archive) FinishGame(ctx context.Context, gameID, winner string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE games SET winner = ?, finished_at = ? WHERE id = ?
	`, winner, time.Now().UTC(), gameID)
	return err
}

// RecordDecision stores one accepted decision.
func (a *Archive) RecordDecision(ctx context.Context, gameID string, turn int, phase game.Phase, player string, d game.Decision) error {
	vote, voted := d.VoteTarget()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO decisions (game_id, turn, phase, player, strategy, speech, vote, voted_nil, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, gameID, turn, string(phase), player, d.Strategy, d.Speech, vote, !voted, time.Now().UTC())
	return err
}

// GetGame returns one archived game.
func (a *Archive) GetGame(ctx context.Context, gameID string) (*Game, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, mode, COALESCE(winner, ''), started_at, COALESCE(finished_at, started_at)
		FROM games WHERE id = ?
	`, gameID)

	var g Game
	var mode string
	if err := row.Scan(&g.ID, &mode, &g.Winner, &g.StartedAt, &g.FinishedAt); err != nil {
		return nil, err
	}
	g.Mode = game.Mode(mode)
	return &g, nil
}

// ListDecisions returns a game's decisions in insertion order.
func (a *Archive) ListDecisions(ctx context.Context, gameID string) ([]Decision, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT game_id, turn, phase, player, strategy, speech, vote, voted_nil
		FROM decisions WHERE game_id = ? ORDER BY rowid ASC
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var phase string
		if err := rows.Scan(&d.GameID, &d.Turn, &phase, &d.Player,
			&d.Strategy, &d.Speech, &d.Vote, &d.VotedNil); err != nil {
			return nil, err
		}
		d.Phase = game.Phase(phase)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			winner TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL REFERENCES games(id),
			turn INTEGER NOT NULL,
			phase TEXT NOT NULL,
			player TEXT NOT NULL,
			strategy TEXT,
			speech TEXT,
			vote TEXT,
			voted_nil BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_game ON decisions(game_id);
	`)
	return err
}
