// Package config loads the arena run configuration from defaults, an
// optional YAML file, and MAFIARENA_-prefixed environment variables, in
// that order. Provider credentials stay out of the file and come from the
// conventional environment variables only.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
)

const envPrefix = "MAFIARENA_"

type Config struct {
	// Mode is the run-wide invocation mode: hosted or local.
	Mode string `koanf:"mode" yaml:"mode"`
	// TimeoutSeconds bounds each backend round trip. Zero disables it.
	TimeoutSeconds int `koanf:"timeout" yaml:"timeout"`

	Dirs      DirsConfig      `koanf:"dirs" yaml:"dirs"`
	Log       LogConfig       `koanf:"log" yaml:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
	Memory    MemoryConfig    `koanf:"memory" yaml:"memory"`
	Archive   ArchiveConfig   `koanf:"archive" yaml:"archive"`
	Game      GameConfig      `koanf:"game" yaml:"game"`
	Players   []PlayerConfig  `koanf:"players" yaml:"players"`
}

type DirsConfig struct {
	// Logs holds the per-player audit history files.
	Logs string `koanf:"logs" yaml:"logs"`
	// Memories holds the cross-game memory files.
	Memories string `koanf:"memories" yaml:"memories"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter string `koanf:"exporter" yaml:"exporter"` // stdout, otlp, none
	Endpoint string `koanf:"endpoint" yaml:"endpoint"`
	Insecure bool   `koanf:"insecure" yaml:"insecure"`
}

type MemoryConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

type ArchiveConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

type GameConfig struct {
	// Turns caps the number of day/night rounds before the run aborts.
	Turns int `koanf:"turns" yaml:"turns"`
}

type PlayerConfig struct {
	Name     string `koanf:"name" yaml:"name"`
	Role     string `koanf:"role" yaml:"role"`
	Provider string `koanf:"provider" yaml:"provider"`
	Model    string `koanf:"model" yaml:"model"`
}

// Timeout returns the per-call timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration. path may be empty to run on defaults and
// environment alone.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("mode", string(game.ModeHosted))
	k.Set("timeout", 120)
	k.Set("dirs.logs", "logs")
	k.Set("dirs.memories", "memories")
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("telemetry.exporter", "none")
	k.Set("memory.enabled", true)
	k.Set("archive.enabled", false)
	k.Set("archive.path", "arena.db")
	k.Set("game.turns", 20)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "loading config file", err).
				WithContext("path", path)
		}
	}

	// 2. Load from ENV (MAFIARENA_LOG_LEVEL -> log.level)
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "loading environment", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "unmarshaling config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks run-level consistency. Roster checks apply only when a
// roster is present, so a bare config still loads for tooling.
func (c *Config) Validate() error {
	switch game.Mode(c.Mode) {
	case game.ModeHosted, game.ModeLocal:
	default:
		return errors.Configuration(fmt.Sprintf("unknown mode %q", c.Mode))
	}

	if c.TimeoutSeconds < 0 {
		return errors.Configuration("timeout must not be negative")
	}

	seen := make(map[string]bool, len(c.Players))
	for i, p := range c.Players {
		if p.Name == "" {
			return errors.Configuration(fmt.Sprintf("player %d has no name", i))
		}
		if seen[p.Name] {
			return errors.Configuration("duplicate player name " + p.Name)
		}
		seen[p.Name] = true

		switch game.Role(p.Role) {
		case game.RoleMafia, game.RoleVillager:
		default:
			return errors.Configuration(fmt.Sprintf("player %s has unknown role %q", p.Name, p.Role))
		}
		if p.Provider == "" || p.Model == "" {
			return errors.Configuration("player " + p.Name + " needs a provider and a model")
		}
	}
	return nil
}

// Roster converts the configured players into the game data model.
func (c *Config) Roster() []game.PlayerState {
	players := make([]game.PlayerState, 0, len(c.Players))
	for _, p := range c.Players {
		players = append(players, game.PlayerState{
			Name:     p.Name,
			Role:     game.Role(p.Role),
			Provider: p.Provider,
			Model:    p.Model,
			Alive:    true,
		})
	}
	return players
}

// Dump renders the effective configuration as YAML, for startup logging
// and debugging. Credentials are never part of it.
func (c *Config) Dump() (string, error) {
	out, err := yamlv3.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Credentials holds provider API keys, read from the conventional
// environment variables. An empty key means that provider is unavailable
// in hosted mode.
type Credentials struct {
	OpenAI    string
	Anthropic string
	Gemini    string
	XAI       string
	Groq      string
}

// LoadCredentials reads provider keys from the environment.
func LoadCredentials() Credentials {
	return Credentials{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		Gemini:    os.Getenv("GEMINI_API_KEY"),
		XAI:       os.Getenv("XAI_API_KEY"),
		Groq:      os.Getenv("GROQ_API_KEY"),
	}
}
