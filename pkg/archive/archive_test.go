package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jllopis/mafiarena/pkg/game"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestGameLifecycle(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	id, err := a.BeginGame(ctx, game.ModeHosted)
	if err != nil {
		t.Fatalf("begin game: %v", err)
	}
	if id == "" {
		t.Fatal("expected a game id")
	}

	if err := a.FinishGame(ctx, id, "Villagers"); err != nil {
		t.Fatalf("finish game: %v", err)
	}

	g, err := a.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if g.Mode != game.ModeHosted || g.Winner != "Villagers" {
		t.Errorf("unexpected game record: %+v", g)
	}
	if g.FinishedAt.Before(g.StartedAt) {
		t.Errorf("finished_at before started_at: %+v", g)
	}
}

func TestRecordAndListDecisions(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	id, err := a.BeginGame(ctx, game.ModeLocal)
	if err != nil {
		t.Fatalf("begin game: %v", err)
	}

	target := "Bob"
	decisions := []struct {
		turn  int
		phase game.Phase
		who   string
		d     game.Decision
	}{
		{1, game.PhaseDay, "Alice", game.Decision{Strategy: "s1", Speech: "hello"}},
		{2, game.PhaseVoting, "Alice", game.Decision{Strategy: "s2", Speech: "", Vote: &target}},
	}
	for _, rec := range decisions {
		if err := a.RecordDecision(ctx, id, rec.turn, rec.phase, rec.who, rec.d); err != nil {
			t.Fatalf("record decision: %v", err)
		}
	}

	got, err := a.ListDecisions(ctx, id)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(got))
	}
	if !got[0].VotedNil || got[0].Vote != "" {
		t.Errorf("null vote not archived as such: %+v", got[0])
	}
	if got[1].VotedNil || got[1].Vote != "Bob" {
		t.Errorf("vote not archived: %+v", got[1])
	}
	if got[1].Phase != game.PhaseVoting {
		t.Errorf("phase = %q", got[1].Phase)
	}
}

func TestListDecisionsUnknownGame(t *testing.T) {
	a := openTestArchive(t)
	got, err := a.ListDecisions(context.Background(), "no-such-game")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no decisions, got %d", len(got))
	}
}
