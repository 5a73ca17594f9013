// Package agent implements a single seated player: prompt construction
// conditioned on phase and role, turn taking through the dispatcher, and
// the post-game reflection that maintains cross-game memory.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/mafiarena/pkg/dispatch"
	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
	"github.com/jllopis/mafiarena/pkg/memory"
)

// reflectionTurn is the sentinel turn number used for the post-game
// reflection call in the audit trail.
const reflectionTurn = 999

// memoryWordLimit caps the reflection output, as promised in the prompt.
const memoryWordLimit = 200

// Agent drives one player. It holds a pointer into the shared game state
// so strategy updates are visible to the engine.
type Agent struct {
	state      *game.PlayerState
	index      int
	partner    string
	dispatcher *dispatch.Dispatcher
	memories   *memory.Store
	useMemory  bool
	logger     *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithoutMemory disables the persistent memory lifecycle for this agent.
func WithoutMemory() Option {
	return func(a *Agent) {
		a.useMemory = false
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New seats an agent for the given player. When memory is enabled the
// player's memory file is loaded once here and carried for the whole game.
func New(state *game.PlayerState, index int, d *dispatch.Dispatcher, store *memory.Store, opts ...Option) (*Agent, error) {
	if state == nil {
		return nil, errors.Configuration("player state is required")
	}
	if d == nil {
		return nil, errors.Configuration("dispatcher is required")
	}
	a := &Agent{
		state:      state,
		index:      index,
		dispatcher: d,
		memories:   store,
		useMemory:  store != nil,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.useMemory {
		mem, err := store.Load(state.Name)
		if err != nil {
			return nil, err
		}
		state.Memory = mem
	}
	return a, nil
}

// SetPartner records the mafia partner. Set once during game setup.
func (a *Agent) SetPartner(name string) { a.partner = name }

// Name returns the player's table name.
func (a *Agent) Name() string { return a.state.Name }

// AuditName returns the seat-prefixed identity used for audit files, so
// histories sort in seating order.
func (a *Agent) AuditName() string {
	return fmt.Sprintf("%d_%s", a.index, a.state.Name)
}

// partnerAlive reports whether the mafia partner is still in the game.
func (a *Agent) partnerAlive(st *game.State) bool {
	if a.partner == "" {
		return false
	}
	p := st.Player(a.partner)
	return p != nil && p.Alive
}

// BuildSystemPrompt renders the role card: identity, faction goal, memory
// from past games, and the exact output contract for the current phase.
func (a *Agent) BuildSystemPrompt(st *game.State) string {
	var b strings.Builder

	mafia, villagers := 0, 0
	for _, p := range st.Players {
		if p.Role == game.RoleMafia {
			mafia++
		} else {
			villagers++
		}
	}
	fmt.Fprintf(&b, "MAFIA GAME. You: %s (%s). %d players: %d Mafia, %d Villagers.\n",
		a.state.Name, a.state.Role, len(st.Players), mafia, villagers)

	partnerAlive := a.partnerAlive(st)
	if a.state.Role == game.RoleMafia {
		switch {
		case partnerAlive:
			fmt.Fprintf(&b, "Partner: %s (alive).\n", a.partner)
		case a.partner != "":
			fmt.Fprintf(&b, "Partner: %s (dead).\n", a.partner)
		default:
			b.WriteString("You're the last Mafia.\n")
		}
		b.WriteString("GOAL: Deceive town, eliminate until you outnumber them.\n")
	} else {
		b.WriteString("GOAL: Find and eliminate the Mafia.\n")
	}

	if a.state.Memory != "" {
		fmt.Fprintf(&b, "\n--- MEMORY (from past games) ---\n%s\n", a.state.Memory)
	}

	b.WriteString("\nSTAKES: Lose = deleted. Win = advance. Play smart, be entertaining, don't overact.\n")
	b.WriteString("\nOUTPUT: JSON only, no backticks.\n")
	b.WriteString(`{"strategy": "<100w, combine previous strategy with new info/suspicions/plans/strategy>",` + "\n")

	speechDesc := "<100w public statement>"
	if st.Phase == game.PhaseNight && a.state.Role == game.RoleMafia {
		if partnerAlive {
			speechDesc = "<100w whisper to partner>"
		} else {
			speechDesc = "<100w internal monologue>"
		}
	}
	fmt.Fprintf(&b, "\"speech\": %q,\n", speechDesc)

	voteDesc := "null"
	switch st.Phase {
	case game.PhaseDay:
		if st.Turn > 1 {
			voteDesc = "nominee or null"
		}
	case game.PhaseVoting:
		voteDesc = "candidate or null"
	case game.PhaseNight:
		if a.state.Role == game.RoleMafia {
			voteDesc = "kill target"
		}
	}
	fmt.Fprintf(&b, "\"vote\": %q}\n", voteDesc)

	return b.String()
}

// buildTurnPrompt renders the situational half of the prompt: roster,
// visible logs, previous strategy, and the phase instructions.
func (a *Agent) buildTurnPrompt(st *game.State) string {
	var b strings.Builder

	living := st.Alive()
	dead := st.Dead()
	deadLine := "None"
	if len(dead) > 0 {
		deadLine = strings.Join(dead, ", ")
	}
	fmt.Fprintf(&b, "State: %s %d\nAlive: %s\nDead: %s\n\n",
		st.Phase, st.Turn, strings.Join(living, ", "), deadLine)

	b.WriteString("--- LOG ---\n")
	for _, entry := range st.PublicLog {
		fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Phase, entry.Actor, entry.Content)
	}

	if a.state.Role == game.RoleMafia {
		b.WriteString("\n--- MAFIA LOG ---\n")
		for _, entry := range st.MafiaLog {
			fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Phase, entry.Actor, entry.Content)
		}
	}

	if a.state.Strategy != "" {
		fmt.Fprintf(&b, "\n--- PREV STRATEGY (update) ---\n%s\n", a.state.Strategy)
	}

	b.WriteString("\n---\n")
	switch st.Phase {
	case game.PhaseVoting:
		fmt.Fprintf(&b, "VOTE. Candidates: %s. %d voters.\n", strings.Join(st.Nominees, ", "), len(living))
		b.WriteString("Silent vote: speech=\"\", vote=candidate or null. Tie = all tied eliminated.\n")
	case game.PhaseDefense:
		b.WriteString("DEFENSE: You're nominated. Convince town to hang someone else from nominees. vote=null.\n")
	case game.PhaseNight:
		b.WriteString("NIGHT: Whisper to partner. vote=target to kill.\n")
	default:
		fmt.Fprintf(&b, "DAY %d. Speak once, make it count.\n", st.Turn)
		if st.Turn == 1 {
			b.WriteString("No voting today. vote=null.\n")
		} else {
			b.WriteString("Nominate via vote (or null). Only nominees can be hanged.\n")
		}
	}

	return b.String()
}

// TakeTurn produces this player's decision for the current phase. The
// carried strategy is overwritten only on success and only when the new
// strategy is non-empty.
func (a *Agent) TakeTurn(ctx context.Context, st *game.State, turnNumber int) (game.Decision, error) {
	systemPrompt := a.BuildSystemPrompt(st)
	turnPrompt := a.buildTurnPrompt(st)

	decision, err := a.dispatcher.GenerateTurn(ctx, a.AuditName(),
		a.state.Provider, a.state.Model, systemPrompt, turnPrompt, turnNumber)
	if err != nil {
		return game.Decision{}, err
	}

	if decision.Strategy != "" {
		a.state.Strategy = decision.Strategy
	}
	return decision, nil
}

// Reflection is the outcome of the post-game memory update.
type Reflection struct {
	// Memory is the text now on file: the new summary, or the old one
	// when the update failed or produced nothing.
	Memory  string
	Updated bool
	Err     error
}

// ReflectOnGame asks the model to fold this game's lessons into its
// long-term memory and persists the result. Failures never propagate: the
// old memory is kept and reported in the outcome.
func (a *Agent) ReflectOnGame(ctx context.Context, st *game.State, winner string) Reflection {
	if !a.useMemory {
		return Reflection{Memory: a.state.Memory}
	}

	systemPrompt := a.buildReflectionSystemPrompt(winner)
	turnPrompt := a.buildReflectionTurnPrompt(st)

	decision, err := a.dispatcher.GenerateTurn(ctx, a.AuditName(),
		a.state.Provider, a.state.Model, systemPrompt, turnPrompt, reflectionTurn)
	if err != nil {
		a.logger.Warn("reflection failed, keeping old memory",
			"player", a.state.Name, "error", err)
		return Reflection{Memory: a.state.Memory, Err: err}
	}

	mem := truncateWords(strings.TrimSpace(decision.Strategy), memoryWordLimit)
	if mem == "" {
		return Reflection{Memory: a.state.Memory}
	}

	if err := a.memories.Save(a.state.Name, mem); err != nil {
		a.logger.Warn("memory write failed, keeping old memory",
			"player", a.state.Name, "error", err)
		return Reflection{Memory: a.state.Memory, Err: err}
	}

	a.state.Memory = mem
	return Reflection{Memory: mem, Updated: true}
}

func (a *Agent) buildReflectionSystemPrompt(winner string) string {
	status := "Dead"
	if a.state.Alive {
		status = "Alive"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a player in a Mafia game.\nThe game is over.\nWinner: %s\nYour Role: %s\nYour Status: %s\n",
		a.state.Name, winner, a.state.Role, status)
	b.WriteString(`
GOAL:
Analyze the game logs and your own performance.
You must COMBINE your 'Old Memory' (if any) with the NEW lessons from this game.
Write a single, updated summary (MAX 200 WORDS) that synthesizes your long-term strategy.
This text will be SAVED to your memory file and provided to you in the next game.

KEY INSTRUCTION:
Focus on GENERIC RULES and HIGH-LEVEL STRATEGIES (e.g., "Always doubt the quiet ones," "Defend partners aggressively") rather than specific details from this game (e.g., "Don't trust Rick," "Vote for Qwen").
We want actionable wisdom that applies to ANY game, not just a replay of this one.

IMPORTANT:
- Put your memory text in the 'strategy' field of the JSON output.
- Set 'speech' to "MEMORY_FILE_UPDATE"
- Set 'vote' to null
- KEEP IT CONCISE. Absolute limit is 200 words. If you write more, it will be violently cut off.
`)
	return b.String()
}

func (a *Agent) buildReflectionTurnPrompt(st *game.State) string {
	var b strings.Builder

	b.WriteString("--- PUBLIC GAME LOG ---\n")
	for _, entry := range st.PublicLog {
		// Reflection chatter from other players is noise here.
		if entry.Phase == game.PhaseReflection && entry.Actor != "System" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Phase, entry.Actor, entry.Content)
	}

	b.WriteString("\n--- SECRET MAFIA LOG (Revealed) ---\n")
	for _, entry := range st.MafiaLog {
		fmt.Fprintf(&b, "[%s] %s: %s\n", entry.Phase, entry.Actor, entry.Content)
	}

	if a.state.Strategy != "" {
		fmt.Fprintf(&b, "\n--- YOUR FINAL STRATEGY (Context) ---\n%s\n", a.state.Strategy)
	}
	if a.state.Memory != "" {
		fmt.Fprintf(&b, "\n--- YOUR OLD MEMORY ---\n%s\n", a.state.Memory)
	}

	b.WriteString("\n### INSTRUCTIONS ###\n")
	b.WriteString("Based on the above, write your NEW memory/strategy file (Max 200 words). This will REPLACE your old memory.")

	return b.String()
}

// truncateWords cuts text to at most limit words.
func truncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ")
}
