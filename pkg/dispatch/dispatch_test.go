package dispatch

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/mafiarena/pkg/audit"
	arenaerrors "github.com/jllopis/mafiarena/pkg/errors"
	"github.com/jllopis/mafiarena/pkg/game"
	"github.com/jllopis/mafiarena/pkg/llm"
	"github.com/jllopis/mafiarena/pkg/localtool"
)

const validDecision = `{"strategy": "lay low", "speech": "I saw nothing.", "vote": null}`

func newTestDispatcher(t *testing.T, mode game.Mode, opts ...Option) (*Dispatcher, *audit.Log) {
	t.Helper()
	log := audit.NewLog(t.TempDir())
	d, err := New(mode, log, opts...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d, log
}

func readAudit(t *testing.T, log *audit.Log, player string) string {
	t.Helper()
	data, err := os.ReadFile(log.Path(player))
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	return string(data)
}

func TestNewRequiresAuditLog(t *testing.T) {
	if _, err := New(game.ModeHosted, nil); !arenaerrors.IsCode(err, arenaerrors.CodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestGenerateTurnHostedSuccess(t *testing.T) {
	mock := &llm.MockProvider{Response: validDecision}
	d, log := newTestDispatcher(t, game.ModeHosted, WithHosted("openai", mock, true))

	decision, err := d.GenerateTurn(context.Background(), "Alice", "openai", "gpt-5-mini",
		"You are Alice.", "It is your turn.", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != "lay low" || decision.Speech != "I saw nothing." {
		t.Errorf("unexpected decision: %+v", decision)
	}
	if _, ok := decision.VoteTarget(); ok {
		t.Error("expected null vote")
	}

	if len(mock.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(mock.Requests))
	}
	req := mock.Requests[0]
	if !req.JSONOutput {
		t.Error("first variant should carry the structured-output hint")
	}
	if got := llm.SystemPrompt(req.Messages); got != "You are Alice." {
		t.Errorf("system prompt = %q", got)
	}

	trail := readAudit(t, log, "Alice")
	if !strings.Contains(trail, "--- Turn 3 ---") {
		t.Errorf("audit trail missing turn header: %q", trail)
	}
	if !strings.Contains(trail, "You are Alice.\n\nIt is your turn.") {
		t.Errorf("audit trail missing full prompt: %q", trail)
	}
	if !strings.Contains(trail, validDecision) {
		t.Errorf("audit trail missing raw response: %q", trail)
	}
}

func TestGenerateTurnHostedVariantFallback(t *testing.T) {
	flaky := &llm.FlakyMockProvider{FailCount: 1, Response: validDecision}
	d, _ := newTestDispatcher(t, game.ModeHosted, WithHosted("openai", flaky, true))

	if _, err := d.GenerateTurn(context.Background(), "Bob", "openai", "gpt-5-mini",
		"sys", "turn", 1); err != nil {
		t.Fatalf("fallback variant should have succeeded: %v", err)
	}

	if len(flaky.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(flaky.Requests))
	}
	first, second := flaky.Requests[0], flaky.Requests[1]
	if !first.JSONOutput {
		t.Error("first variant should request structured output")
	}
	if second.JSONOutput {
		t.Error("fallback variant must not request structured output")
	}
	user := second.Messages[len(second.Messages)-1].Content
	if !strings.HasSuffix(user, "Provide your response in JSON format.") {
		t.Errorf("fallback variant missing JSON instruction, got %q", user)
	}
}

func TestGenerateTurnSingleVariantProvider(t *testing.T) {
	mock := &llm.MockProvider{Response: validDecision}
	d, _ := newTestDispatcher(t, game.ModeHosted, WithHosted("anthropic", mock, false))

	if _, err := d.GenerateTurn(context.Background(), "Carol", "anthropic", "claude-sonnet-4-20250514",
		"sys", "turn", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Requests) != 1 {
		t.Fatalf("expected exactly one variant, got %d", len(mock.Requests))
	}
	req := mock.Requests[0]
	if req.JSONOutput {
		t.Error("provider without hint support must not request structured output")
	}
	if strings.Contains(req.Messages[len(req.Messages)-1].Content, "JSON format") {
		t.Error("single-variant request must not append the fallback instruction")
	}
}

func TestGenerateTurnHostedAllVariantsFail(t *testing.T) {
	cause := errors.New("429 too many requests")
	d, log := newTestDispatcher(t, game.ModeHosted,
		WithHosted("openai", &llm.FailingMockProvider{Err: cause}, true))

	_, err := d.GenerateTurn(context.Background(), "Dave", "openai", "gpt-5-mini", "sys", "turn", 2)
	if !arenaerrors.IsCode(err, arenaerrors.CodeInvocation) {
		t.Fatalf("expected INVOCATION_ERROR, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be preserved in the chain")
	}

	trail := readAudit(t, log, "Dave")
	if !strings.Contains(trail, "ERROR:") {
		t.Errorf("failed call must still be audited, got %q", trail)
	}
}

func TestGenerateTurnUnmappedHostedProvider(t *testing.T) {
	mock := &llm.MockProvider{Response: validDecision}
	d, log := newTestDispatcher(t, game.ModeHosted, WithHosted("openai", mock, true))

	_, err := d.GenerateTurn(context.Background(), "Eve", "mistral", "mistral-large", "sys", "turn", 1)
	if !arenaerrors.IsCode(err, arenaerrors.CodeConfiguration) {
		t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
	}
	if len(mock.Requests) != 0 {
		t.Error("configuration failure must surface before any backend call")
	}

	trail := readAudit(t, log, "Eve")
	if !strings.Contains(trail, "ERROR:") {
		t.Errorf("configuration failure must still be audited, got %q", trail)
	}
}

func TestGenerateTurnValidationFailureIsAudited(t *testing.T) {
	mock := &llm.MockProvider{Response: "I refuse to answer in JSON."}
	d, log := newTestDispatcher(t, game.ModeHosted, WithHosted("openai", mock, true))

	_, err := d.GenerateTurn(context.Background(), "Frank", "openai", "gpt-5-mini", "sys", "turn", 4)
	if !arenaerrors.IsCode(err, arenaerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	trail := readAudit(t, log, "Frank")
	if !strings.Contains(trail, "I refuse to answer in JSON.") {
		t.Errorf("raw response must be on file before validation, got %q", trail)
	}
	if !strings.Contains(trail, "ERROR:") {
		t.Errorf("validation failure must also be on file, got %q", trail)
	}
}

func TestGenerateTurnFencedResponse(t *testing.T) {
	mock := &llm.MockProvider{Response: "```json\n" + validDecision + "\n```"}
	d, _ := newTestDispatcher(t, game.ModeHosted, WithHosted("openai", mock, true))

	decision, err := d.GenerateTurn(context.Background(), "Grace", "openai", "gpt-5-mini", "sys", "turn", 1)
	if err != nil {
		t.Fatalf("fenced response should parse: %v", err)
	}
	if decision.Strategy != "lay low" {
		t.Errorf("unexpected decision: %+v", decision)
	}
}

func TestGenerateTurnLocalMode(t *testing.T) {
	var seenPrompt, seenModel string
	runner := localtool.NewRunner(map[string]localtool.Spec{
		"openai": {
			Command: "echo",
			BuildArgs: func(model, prompt string) []string {
				seenModel, seenPrompt = model, prompt
				return []string{validDecision}
			},
		},
	})
	d, log := newTestDispatcher(t, game.ModeLocal, WithLocalTools(runner))

	decision, err := d.GenerateTurn(context.Background(), "Heidi", "openai", "gpt-5-mini",
		"You are Heidi.", "It is your turn.", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Speech != "I saw nothing." {
		t.Errorf("unexpected decision: %+v", decision)
	}

	if seenModel != "gpt-5-mini" {
		t.Errorf("model not forwarded, got %q", seenModel)
	}
	if !strings.HasPrefix(seenPrompt, "You are Heidi.\n\nIt is your turn.") {
		t.Errorf("prompt assembly wrong: %q", seenPrompt)
	}
	if !strings.HasSuffix(seenPrompt, "IMPORTANT: Return ONLY a JSON object.") {
		t.Errorf("local prompt missing JSON instruction: %q", seenPrompt)
	}

	trail := readAudit(t, log, "Heidi")
	if !strings.Contains(trail, "--- Turn 5 ---") {
		t.Errorf("audit trail missing turn header: %q", trail)
	}
}

func TestGenerateTurnLocalUnmappedProvider(t *testing.T) {
	d, _ := newTestDispatcher(t, game.ModeLocal, WithLocalTools(localtool.NewRunner(nil)))

	_, err := d.GenerateTurn(context.Background(), "Ivan", "mistral", "m", "sys", "turn", 1)
	if !arenaerrors.IsCode(err, arenaerrors.CodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestGenerateTurnLocalToolFailure(t *testing.T) {
	runner := localtool.NewRunner(map[string]localtool.Spec{
		"openai": {
			Command: "sh",
			BuildArgs: func(model, prompt string) []string {
				return []string{"-c", "echo rate limited >&2; exit 3"}
			},
		},
	})
	d, log := newTestDispatcher(t, game.ModeLocal, WithLocalTools(runner))

	_, err := d.GenerateTurn(context.Background(), "Judy", "openai", "m", "sys", "turn", 1)
	if !arenaerrors.IsCode(err, arenaerrors.CodeInvocation) {
		t.Fatalf("expected INVOCATION_ERROR, got %v", err)
	}

	trail := readAudit(t, log, "Judy")
	if !strings.Contains(trail, "rate limited") {
		t.Errorf("tool stderr should be on file, got %q", trail)
	}
}

func TestGenerateTurnTimeout(t *testing.T) {
	mock := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	d, _ := newTestDispatcher(t, game.ModeHosted,
		WithHosted("openai", mock, false),
		WithTimeout(10*time.Millisecond))

	_, err := d.GenerateTurn(context.Background(), "Ken", "openai", "m", "sys", "turn", 1)
	if !arenaerrors.IsCode(err, arenaerrors.CodeInvocation) {
		t.Errorf("expected INVOCATION_ERROR on timeout, got %v", err)
	}
}
