// Package referee runs a complete game: it sequences phases over the
// living roster, applies nominations, ballots and night kills, detects the
// winner, and drives the post-game reflection pass. Agents only ever see
// the read-only state it maintains.
package referee

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jllopis/mafiarena/pkg/agent"
	"github.com/jllopis/mafiarena/pkg/archive"
	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
)

// systemActor names referee announcements in the logs.
const systemActor = "System"

// Winner values reported by Run.
const (
	WinnerMafia    = "Mafia"
	WinnerVillage  = "Villagers"
	WinnerDeadline = "Nobody (turn limit)"
)

// Referee owns the game state and the seated agents.
type Referee struct {
	state    *game.State
	agents   []*agent.Agent
	archive  *archive.Archive
	gameID   string
	mode     game.Mode
	maxTurns int
	logger   *slog.Logger
}

// Option configures a Referee.
type Option func(*Referee)

// WithArchive persists games and decisions to the archive.
func WithArchive(a *archive.Archive) Option {
	return func(r *Referee) {
		r.archive = a
	}
}

// WithMode records the invocation mode in the archive.
func WithMode(mode game.Mode) Option {
	return func(r *Referee) {
		r.mode = mode
	}
}

// WithMaxTurns caps the number of rounds before the run is declared over.
func WithMaxTurns(n int) Option {
	return func(r *Referee) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Referee) {
		r.logger = logger
	}
}

// New seats the agents around the given state. Agents must parallel
// state.Players in order. Mafia partners are introduced to each other here.
func New(state *game.State, agents []*agent.Agent, opts ...Option) (*Referee, error) {
	if state == nil || len(state.Players) == 0 {
		return nil, errors.Configuration("a roster is required")
	}
	if len(agents) != len(state.Players) {
		return nil, errors.Configuration(fmt.Sprintf(
			"agent count %d does not match roster size %d", len(agents), len(state.Players)))
	}

	r := &Referee{
		state:    state,
		agents:   agents,
		mode:     game.ModeHosted,
		maxTurns: 20,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Each mafia learns the first other mafia in roster order.
	var mafia []int
	for i := range state.Players {
		if state.Players[i].Role == game.RoleMafia {
			mafia = append(mafia, i)
		}
	}
	for _, i := range mafia {
		for _, j := range mafia {
			if i != j {
				agents[i].SetPartner(state.Players[j].Name)
				break
			}
		}
	}

	return r, nil
}

// State exposes the game state, for inspection after Run.
func (r *Referee) State() *game.State { return r.state }

// Run plays the game to completion and returns the winner. The reflection
// pass always runs, even when the turn limit ends the game.
func (r *Referee) Run(ctx context.Context) (string, error) {
	if r.archive != nil {
		id, err := r.archive.BeginGame(ctx, r.mode)
		if err != nil {
			r.logger.Warn("archive unavailable for this run", "error", err)
		} else {
			r.gameID = id
		}
	}

	winner := ""
	for turn := 1; winner == ""; turn++ {
		if turn > r.maxTurns {
			winner = WinnerDeadline
			r.announce(game.PhaseDay, "Turn limit reached. The town disperses.")
			break
		}
		r.state.Turn = turn

		nominees := r.runDay(ctx, turn)
		if len(nominees) > 0 {
			r.runDefense(ctx, turn, nominees)
			r.runVoting(ctx, turn, nominees)
		}
		if winner = r.checkWinner(); winner != "" {
			break
		}

		r.runNight(ctx, turn)
		if winner = r.checkWinner(); winner != "" {
			break
		}
	}

	r.announce(game.PhaseReflection, "Game over. Winner: "+winner)
	r.runReflection(ctx, winner)

	if r.archive != nil && r.gameID != "" {
		if err := r.archive.FinishGame(ctx, r.gameID, winner); err != nil {
			r.logger.Warn("archiving game result failed", "error", err)
		}
	}
	return winner, nil
}

// runDay lets every living player speak once. From turn 2 on, votes
// nominate for the hanging ballot.
func (r *Referee) runDay(ctx context.Context, turn int) []string {
	r.state.Phase = game.PhaseDay
	r.state.Nominees = nil

	var nominees []string
	nominated := make(map[string]bool)

	for i, a := range r.agents {
		if !r.state.Players[i].Alive {
			continue
		}
		decision, err := a.TakeTurn(ctx, r.state, turn)
		if err != nil {
			r.skip(a.Name(), err)
			continue
		}
		r.record(ctx, turn, a.Name(), decision)

		if decision.Speech != "" {
			r.state.PublicLog = append(r.state.PublicLog, game.LogEntry{
				Phase: game.PhaseDay, Actor: a.Name(), Content: decision.Speech,
			})
		}

		if turn == 1 {
			continue
		}
		if target, ok := decision.VoteTarget(); ok {
			p := r.state.Player(target)
			if p == nil || !p.Alive || target == a.Name() {
				r.logger.Debug("ignoring invalid nomination",
					"player", a.Name(), "target", target)
				continue
			}
			if !nominated[target] {
				nominated[target] = true
				nominees = append(nominees, target)
			}
			r.announce(game.PhaseDay, fmt.Sprintf("%s nominates %s.", a.Name(), target))
		}
	}
	return nominees
}

// runDefense gives each nominee one statement before the ballot.
func (r *Referee) runDefense(ctx context.Context, turn int, nominees []string) {
	r.state.Phase = game.PhaseDefense
	r.state.Nominees = nominees

	for i, a := range r.agents {
		if !r.state.Players[i].Alive || !contains(nominees, a.Name()) {
			continue
		}
		decision, err := a.TakeTurn(ctx, r.state, turn)
		if err != nil {
			r.skip(a.Name(), err)
			continue
		}
		r.record(ctx, turn, a.Name(), decision)
		if decision.Speech != "" {
			r.state.PublicLog = append(r.state.PublicLog, game.LogEntry{
				Phase: game.PhaseDefense, Actor: a.Name(), Content: decision.Speech,
			})
		}
	}
}

// runVoting holds the silent ballot. Speech is discarded, votes count only
// for current nominees, and a tie eliminates all tied nominees.
func (r *Referee) runVoting(ctx context.Context, turn int, nominees []string) {
	r.state.Phase = game.PhaseVoting
	r.state.Nominees = nominees

	tally := make(map[string]int)
	for i, a := range r.agents {
		if !r.state.Players[i].Alive {
			continue
		}
		decision, err := a.TakeTurn(ctx, r.state, turn)
		if err != nil {
			r.skip(a.Name(), err)
			continue
		}
		r.record(ctx, turn, a.Name(), decision)
		if target, ok := decision.VoteTarget(); ok && contains(nominees, target) {
			tally[target]++
		}
	}

	top := 0
	for _, n := range tally {
		if n > top {
			top = n
		}
	}
	if top == 0 {
		r.announce(game.PhaseVoting, "Nobody received a vote. Nobody is eliminated.")
		r.state.Nominees = nil
		return
	}

	for _, name := range nominees {
		if tally[name] != top {
			continue
		}
		r.eliminate(name)
		r.announce(game.PhaseVoting,
			fmt.Sprintf("%s was eliminated by vote (%d votes).", name, top))
	}
	r.state.Nominees = nil
}

// runNight lets the mafia pick a victim. The last legal target named by a
// living mafia wins, since later mafia see their partner's whisper.
func (r *Referee) runNight(ctx context.Context, turn int) {
	r.state.Phase = game.PhaseNight

	victim := ""
	for i, a := range r.agents {
		if !r.state.Players[i].Alive || r.state.Players[i].Role != game.RoleMafia {
			continue
		}
		decision, err := a.TakeTurn(ctx, r.state, turn)
		if err != nil {
			r.skip(a.Name(), err)
			continue
		}
		r.record(ctx, turn, a.Name(), decision)

		if decision.Speech != "" {
			r.state.MafiaLog = append(r.state.MafiaLog, game.LogEntry{
				Phase: game.PhaseNight, Actor: a.Name(), Content: decision.Speech,
			})
		}

		if target, ok := decision.VoteTarget(); ok {
			p := r.state.Player(target)
			if p == nil || !p.Alive || p.Role == game.RoleMafia {
				r.logger.Debug("ignoring illegal kill target",
					"player", a.Name(), "target", target)
				continue
			}
			victim = target
		}
	}

	if victim == "" {
		r.announce(game.PhaseNight, "The night passes quietly.")
		return
	}
	r.eliminate(victim)
	r.announce(game.PhaseNight, fmt.Sprintf("%s was killed in the night.", victim))
}

// runReflection gives every seated agent its memory update. Failures are
// contained inside the agents.
func (r *Referee) runReflection(ctx context.Context, winner string) {
	r.state.Phase = game.PhaseReflection
	for _, a := range r.agents {
		ref := a.ReflectOnGame(ctx, r.state, winner)
		if ref.Err != nil {
			r.logger.Warn("reflection kept old memory",
				"player", a.Name(), "error", ref.Err)
			continue
		}
		if ref.Updated {
			r.logger.Info("memory updated", "player", a.Name())
		}
	}
}

// checkWinner applies the terminal conditions.
func (r *Referee) checkWinner() string {
	mafia, villagers := 0, 0
	for _, p := range r.state.Players {
		if !p.Alive {
			continue
		}
		if p.Role == game.RoleMafia {
			mafia++
		} else {
			villagers++
		}
	}
	switch {
	case mafia == 0:
		return WinnerVillage
	case mafia >= villagers:
		return WinnerMafia
	}
	return ""
}

func (r *Referee) eliminate(name string) {
	if p := r.state.Player(name); p != nil {
		p.Alive = false
	}
}

func (r *Referee) announce(phase game.Phase, content string) {
	r.state.PublicLog = append(r.state.PublicLog, game.LogEntry{
		Phase: phase, Actor: systemActor, Content: content,
	})
}

func (r *Referee) skip(name string, err error) {
	r.logger.Error("turn skipped", "player", name, "error", err)
	r.announce(r.state.Phase, name+" stays silent.")
}

func (r *Referee) record(ctx context.Context, turn int, player string, d game.Decision) {
	if r.archive == nil || r.gameID == "" {
		return
	}
	if err := r.archive.RecordDecision(ctx, r.gameID, turn, r.state.Phase, player, d); err != nil {
		r.logger.Warn("archiving decision failed", "player", player, "error", err)
	}
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
