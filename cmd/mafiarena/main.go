// Command mafiarena runs one complete LLM Mafia game from a YAML roster.
//
// Hosted mode talks to provider APIs using the conventional *_API_KEY
// environment variables; providers without a key simply stay unmapped.
// Local mode shells out to the provider CLI tools on PATH.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jllopis/mafiarena/pkg/agent"
	"github.com/jllopis/mafiarena/pkg/archive"
	"github.com/jllopis/mafiarena/pkg/audit"
	"github.com/jllopis/mafiarena/pkg/config"
	"github.com/jllopis/mafiarena/pkg/dispatch"
	"github.com/jllopis/mafiarena/pkg/game"
	"github.com/jllopis/mafiarena/pkg/localtool"
	"github.com/jllopis/mafiarena/pkg/memory"
	"github.com/jllopis/mafiarena/pkg/referee"
	"github.com/jllopis/mafiarena/pkg/telemetry"
	"github.com/jllopis/mafiarena/providers/anthropic"
	"github.com/jllopis/mafiarena/providers/gemini"
	"github.com/jllopis/mafiarena/providers/groq"
	"github.com/jllopis/mafiarena/providers/openai"
	"github.com/jllopis/mafiarena/providers/xai"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		configPath  = flag.String("config", "", "path to the YAML configuration file")
		modeFlag    = flag.String("mode", "", "override invocation mode: hosted or local")
		dumpConfig  = flag.Bool("dump-config", false, "print the effective configuration and exit")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("mafiarena", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *modeFlag != "" {
		cfg.Mode = *modeFlag
		if err := cfg.Validate(); err != nil {
			fatal(err)
		}
	}

	if *dumpConfig {
		dump, err := cfg.Dump()
		if err != nil {
			fatal(err)
		}
		fmt.Print(dump)
		return
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.Init("mafiarena", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		OTLPInsecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if len(cfg.Players) == 0 {
		fatal(fmt.Errorf("no players configured: a roster is required to run a game"))
	}

	mode := game.Mode(cfg.Mode)
	dispatchOpts := []dispatch.Option{
		dispatch.WithTimeout(cfg.Timeout()),
		dispatch.WithLogger(logger),
	}
	if metrics, err := telemetry.NewTurnMetrics(); err == nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(metrics))
	} else {
		logger.Warn("metrics unavailable", "error", err)
	}

	switch mode {
	case game.ModeLocal:
		dispatchOpts = append(dispatchOpts,
			dispatch.WithLocalTools(localtool.NewRunner(localtool.DefaultTools())))
	default:
		hosted, err := hostedBackends(ctx)
		if err != nil {
			fatal(err)
		}
		dispatchOpts = append(dispatchOpts, hosted...)
	}

	auditLog := audit.NewLog(cfg.Dirs.Logs)
	d, err := dispatch.New(mode, auditLog, dispatchOpts...)
	if err != nil {
		fatal(err)
	}

	st := &game.State{Players: cfg.Roster()}

	var store *memory.Store
	if cfg.Memory.Enabled {
		store = memory.NewStore(cfg.Dirs.Memories)
	}

	agents := make([]*agent.Agent, len(st.Players))
	for i := range st.Players {
		a, err := agent.New(&st.Players[i], i, d, store, agent.WithLogger(logger))
		if err != nil {
			fatal(err)
		}
		agents[i] = a
	}

	refereeOpts := []referee.Option{
		referee.WithMode(mode),
		referee.WithMaxTurns(cfg.Game.Turns),
		referee.WithLogger(logger),
	}
	if cfg.Archive.Enabled {
		arch, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			fatal(err)
		}
		defer arch.Close()
		refereeOpts = append(refereeOpts, referee.WithArchive(arch))
	}

	ref, err := referee.New(st, agents, refereeOpts...)
	if err != nil {
		fatal(err)
	}

	logger.Info("starting game",
		"mode", cfg.Mode, "players", len(st.Players), "turn_limit", cfg.Game.Turns)

	winner, err := ref.Run(ctx)
	if err != nil {
		fatal(err)
	}

	logger.Info("game finished", "winner", winner)
	fmt.Println("Winner:", winner)
}

// hostedBackends maps every provider whose API key is present. A missing
// key leaves that provider unmapped; using it later fails fast with a
// configuration error.
func hostedBackends(ctx context.Context) ([]dispatch.Option, error) {
	creds := config.LoadCredentials()
	var opts []dispatch.Option

	if creds.OpenAI != "" {
		opts = append(opts, dispatch.WithHosted("openai", openai.NewWithAPIKey(creds.OpenAI), true))
	}
	if creds.Anthropic != "" {
		opts = append(opts, dispatch.WithHosted("anthropic", anthropic.NewWithAPIKey(creds.Anthropic), false))
	}
	if creds.Gemini != "" {
		p, err := gemini.NewWithAPIKey(ctx, creds.Gemini)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dispatch.WithHosted("google", p, true))
	}
	if creds.XAI != "" {
		opts = append(opts, dispatch.WithHosted("xai", xai.New(creds.XAI), true))
	}
	if creds.Groq != "" {
		opts = append(opts, dispatch.WithHosted("groq", groq.New(creds.Groq), true))
	}
	return opts, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "mafiarena:", err)
	os.Exit(1)
}
