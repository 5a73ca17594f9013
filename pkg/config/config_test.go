package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Mode != string(game.ModeHosted) {
		t.Errorf("default mode = %q", cfg.Mode)
	}
	if cfg.Timeout() != 120*time.Second {
		t.Errorf("default timeout = %v", cfg.Timeout())
	}
	if cfg.Dirs.Logs != "logs" || cfg.Dirs.Memories != "memories" {
		t.Errorf("default dirs = %+v", cfg.Dirs)
	}
	if !cfg.Memory.Enabled {
		t.Error("memory should default to enabled")
	}
	if cfg.Archive.Enabled {
		t.Error("archive should default to disabled")
	}
	if cfg.Telemetry.Exporter != "none" {
		t.Errorf("default telemetry exporter = %q", cfg.Telemetry.Exporter)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
mode: local
timeout: 30
log:
  level: debug
  format: json
game:
  turns: 10
players:
  - name: Alice
    role: Mafia
    provider: openai
    model: gpt-5-mini
  - name: Bob
    role: Villager
    provider: anthropic
    model: claude-sonnet-4-20250514
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != string(game.ModeLocal) {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Game.Turns != 10 {
		t.Errorf("turns = %d", cfg.Game.Turns)
	}
	if len(cfg.Players) != 2 || cfg.Players[1].Name != "Bob" {
		t.Errorf("players = %+v", cfg.Players)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("MAFIARENA_LOG_LEVEL", "error")
	t.Setenv("MAFIARENA_MODE", "local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("env should win over file, got %q", cfg.Log.Level)
	}
	if cfg.Mode != string(game.ModeLocal) {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown mode", "mode: serverless\n"},
		{"negative timeout", "timeout: -1\n"},
		{"unknown role", "players:\n  - {name: A, role: Jester, provider: openai, model: m}\n"},
		{"missing provider", "players:\n  - {name: A, role: Mafia, model: m}\n"},
		{"duplicate name", "players:\n  - {name: A, role: Mafia, provider: openai, model: m}\n  - {name: A, role: Villager, provider: openai, model: m}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); !errors.IsCode(err, errors.CodeConfiguration) {
				t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.IsCode(err, errors.CodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestRoster(t *testing.T) {
	cfg := &Config{Players: []PlayerConfig{
		{Name: "Alice", Role: "Mafia", Provider: "openai", Model: "gpt-5-mini"},
		{Name: "Bob", Role: "Villager", Provider: "xai", Model: "grok-3-mini"},
	}}
	roster := cfg.Roster()
	if len(roster) != 2 {
		t.Fatalf("roster size = %d", len(roster))
	}
	if roster[0].Role != game.RoleMafia || !roster[0].Alive {
		t.Errorf("roster[0] = %+v", roster[0])
	}
	if roster[1].Provider != "xai" {
		t.Errorf("roster[1] = %+v", roster[1])
	}
}

func TestDumpOmitsCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dump, err := cfg.Dump()
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if strings.Contains(dump, "sk-secret") {
		t.Error("credentials must never appear in the dump")
	}
	if !strings.Contains(dump, "mode: hosted") {
		t.Errorf("dump missing mode: %s", dump)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-1")
	t.Setenv("XAI_API_KEY", "xai-1")
	t.Setenv("ANTHROPIC_API_KEY", "")

	creds := LoadCredentials()
	if creds.OpenAI != "sk-1" || creds.XAI != "xai-1" {
		t.Errorf("credentials = %+v", creds)
	}
	if creds.Anthropic != "" {
		t.Errorf("unset key should be empty, got %q", creds.Anthropic)
	}
}
