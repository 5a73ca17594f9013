// Package dispatch turns a (provider, model, prompt) triple into a validated
// decision. It owns the backend lookup tables for both invocation modes,
// the hosted request-variant fallback, response cleanup and validation, and
// the per-player audit trail.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/mafiarena/pkg/audit"
	"github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
	"github.com/jllopis/mafiarena/pkg/llm"
	"github.com/jllopis/mafiarena/pkg/localtool"
	"github.com/jllopis/mafiarena/pkg/telemetry"
)

const (
	// jsonFallbackInstruction is appended to the user content when a
	// hosted provider rejects its structured-output hint.
	jsonFallbackInstruction = "\n\nProvide your response in JSON format."

	// localInstruction is always appended in local-tool mode, which has no
	// structured-output hint.
	localInstruction = "\n\nIMPORTANT: Return ONLY a JSON object."
)

// hostedBackend pairs a provider client with its request-shape capability.
type hostedBackend struct {
	client   llm.Provider
	jsonHint bool
}

// Dispatcher routes generation requests to hosted APIs or local CLI tools.
// The invocation mode is fixed for the whole run at construction.
type Dispatcher struct {
	mode    game.Mode
	hosted  map[string]hostedBackend
	runner  *localtool.Runner
	audit   *audit.Log
	timeout time.Duration
	metrics *telemetry.TurnMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHosted registers a hosted backend for a provider key. jsonHint marks
// providers whose API accepts a structured-output hint.
func WithHosted(key string, client llm.Provider, jsonHint bool) Option {
	return func(d *Dispatcher) {
		d.hosted[key] = hostedBackend{client: client, jsonHint: jsonHint}
	}
}

// WithLocalTools sets the runner used in local-tool mode.
func WithLocalTools(runner *localtool.Runner) Option {
	return func(d *Dispatcher) {
		d.runner = runner
	}
}

// WithTimeout bounds each generation round trip. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithMetrics attaches turn metrics.
func WithMetrics(m *telemetry.TurnMetrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a Dispatcher for the given invocation mode. The audit log is
// required: every call is recorded before its outcome propagates.
func New(mode game.Mode, auditLog *audit.Log, opts ...Option) (*Dispatcher, error) {
	if auditLog == nil {
		return nil, errors.Configuration("audit log is required")
	}
	d := &Dispatcher{
		mode:   mode,
		hosted: make(map[string]hostedBackend),
		audit:  auditLog,
		tracer: otel.Tracer("mafiarena/dispatch"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Mode returns the run-wide invocation mode.
func (d *Dispatcher) Mode() game.Mode { return d.mode }

// GenerateTurn performs one blocking backend round trip and returns the
// parsed decision. Configuration errors surface before any external call;
// invocation and validation errors propagate unretried. Every call,
// successful or not, is appended to the player's audit file first.
func (d *Dispatcher) GenerateTurn(ctx context.Context, playerID, provider, model, systemPrompt, turnPrompt string, turnNumber int) (game.Decision, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.generate_turn",
		trace.WithAttributes(telemetry.TurnAttributes(playerID, provider, model, turnNumber)...))
	defer span.End()

	start := time.Now()
	decision, err := d.generate(ctx, playerID, provider, model, systemPrompt, turnPrompt, turnNumber)
	d.metrics.RecordTurn(ctx, provider, time.Since(start), err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		d.logger.ErrorContext(ctx, "turn generation failed",
			"player", playerID, "provider", provider, "turn", turnNumber, "error", err)
		return game.Decision{}, err
	}

	d.logger.DebugContext(ctx, "turn generated",
		"player", playerID, "provider", provider, "turn", turnNumber)
	return decision, nil
}

func (d *Dispatcher) generate(ctx context.Context, playerID, provider, model, systemPrompt, turnPrompt string, turnNumber int) (game.Decision, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var (
		prompt   string
		response string
		err      error
	)
	switch d.mode {
	case game.ModeLocal:
		prompt, response, err = d.invokeLocal(ctx, provider, model, systemPrompt, turnPrompt)
	default:
		prompt, response, err = d.invokeHosted(ctx, provider, model, systemPrompt, turnPrompt)
	}

	if err != nil {
		if auditErr := d.audit.RecordError(playerID, turnNumber, prompt, err); auditErr != nil {
			d.logger.Warn("audit write failed", "player", playerID, "error", auditErr)
		}
		return game.Decision{}, err
	}

	if auditErr := d.audit.Record(playerID, turnNumber, prompt, response); auditErr != nil {
		d.logger.Warn("audit write failed", "player", playerID, "error", auditErr)
	}

	decision, err := game.ParseDecision(response)
	if err != nil {
		// The raw response is already on file; add the failure outcome too.
		if auditErr := d.audit.RecordError(playerID, turnNumber, prompt, err); auditErr != nil {
			d.logger.Warn("audit write failed", "player", playerID, "error", auditErr)
		}
		return game.Decision{}, err
	}
	return decision, nil
}

// invokeHosted tries the provider's request variants in order. The first
// success wins; the last failure surfaces as an INVOCATION_ERROR.
func (d *Dispatcher) invokeHosted(ctx context.Context, provider, model, systemPrompt, turnPrompt string) (string, string, error) {
	prompt := systemPrompt + "\n\n" + turnPrompt

	backend, ok := d.hosted[provider]
	if !ok {
		return prompt, "", errors.Configuration("no hosted backend mapped for provider "+provider).
			WithContext("provider", provider).
			WithContext("mode", string(game.ModeHosted))
	}

	var lastErr error
	for _, req := range requestVariants(backend, model, systemPrompt, turnPrompt) {
		resp, err := backend.client.Chat(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		return prompt, resp.Content, nil
	}
	return prompt, "", errors.Invocation("hosted call failed for provider "+provider, lastErr).
		WithContext("provider", provider)
}

// requestVariants builds the ordered request list for a hosted backend:
// the structured-output hint first where supported, then one fallback with
// the hint removed and an explicit JSON instruction in the user content.
func requestVariants(backend hostedBackend, model, systemPrompt, turnPrompt string) []llm.ChatRequest {
	base := llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: turnPrompt},
		},
	}
	if !backend.jsonHint {
		return []llm.ChatRequest{base}
	}

	hinted := base
	hinted.JSONOutput = true

	fallback := llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: turnPrompt + jsonFallbackInstruction},
		},
	}
	return []llm.ChatRequest{hinted, fallback}
}

// invokeLocal assembles the single-argument prompt and runs the provider's
// CLI tool. The mapping is checked before any process is spawned.
func (d *Dispatcher) invokeLocal(ctx context.Context, provider, model, systemPrompt, turnPrompt string) (string, string, error) {
	prompt := systemPrompt + "\n\n" + turnPrompt + localInstruction

	if d.runner == nil {
		return prompt, "", errors.Configuration("no local tool runner configured").
			WithContext("mode", string(game.ModeLocal))
	}
	if _, ok := d.runner.Lookup(provider); !ok {
		return prompt, "", errors.Configuration("no CLI tool mapped for provider "+provider).
			WithContext("provider", provider).
			WithContext("mode", string(game.ModeLocal))
	}

	response, err := d.runner.Run(ctx, provider, model, prompt)
	if err != nil {
		return prompt, "", err
	}
	return prompt, response, nil
}
