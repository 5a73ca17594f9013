// Package game holds the shared data model for a match: phases, roles,
// the read-only state handed to agents, and the decision wire contract.
package game

// Phase identifies the current segment of a game round.
type Phase string

const (
	PhaseDay        Phase = "Day"
	PhaseVoting     Phase = "Voting"
	PhaseDefense    Phase = "Defense"
	PhaseNight      Phase = "Night"
	PhaseReflection Phase = "Reflection"
)

// Role is a player's faction.
type Role string

const (
	RoleMafia    Role = "Mafia"
	RoleVillager Role = "Villager"
)

// Mode selects how backends are invoked for the whole run.
type Mode string

const (
	// ModeHosted calls provider APIs over HTTP.
	ModeHosted Mode = "hosted"
	// ModeLocal shells out to provider CLI tools.
	ModeLocal Mode = "local"
)

// PlayerState is the per-player record owned by its agent.
type PlayerState struct {
	Name     string
	Role     Role
	Provider string
	Model    string
	Alive    bool
	// Strategy is overwritten wholesale on every successful turn and reset
	// each new game.
	Strategy string
	// Memory is loaded once at construction and replaced only by the
	// post-game reflection pass.
	Memory string
}

// LogEntry is one immutable line of game history. Insertion order is the
// read order.
type LogEntry struct {
	Phase   Phase
	Actor   string
	Content string
}

// State is the read-only view of the game supplied to an agent each turn.
type State struct {
	Phase Phase
	Turn  int
	// Players is the ordered roster with alive/dead flags.
	Players []PlayerState
	// PublicLog is visible to every player.
	PublicLog []LogEntry
	// MafiaLog is visible only to Mafia players.
	MafiaLog []LogEntry
	// Nominees is populated only during Voting and Defense.
	Nominees []string
}

// Alive returns the names of living players in roster order.
func (s *State) Alive() []string {
	return s.filter(true)
}

// Dead returns the names of eliminated players in roster order.
func (s *State) Dead() []string {
	return s.filter(false)
}

func (s *State) filter(alive bool) []string {
	var names []string
	for _, p := range s.Players {
		if p.Alive == alive {
			names = append(names, p.Name)
		}
	}
	return names
}

// Player looks up a roster entry by name. Returns nil when absent.
func (s *State) Player(name string) *PlayerState {
	for i := range s.Players {
		if s.Players[i].Name == name {
			return &s.Players[i]
		}
	}
	return nil
}
