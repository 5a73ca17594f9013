// Package localtool shells out to provider CLI tools for generation.
// Each provider key maps to a fixed command and an argument convention;
// the full prompt travels as a single positional argument and stdout is
// the response text.
package localtool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jllopis/mafiarena/pkg/errors"
)

// Spec describes how one CLI tool is invoked.
type Spec struct {
	// Command is the executable name looked up on PATH.
	Command string
	// BuildArgs assembles the argument vector for a model and prompt.
	BuildArgs func(model, prompt string) []string
}

// DefaultTools maps provider keys to their CLI tools. Argument order and
// flags differ per tool.
func DefaultTools() map[string]Spec {
	return map[string]Spec{
		"openai": {
			Command: "codex",
			BuildArgs: func(model, prompt string) []string {
				return []string{"exec", "--model", model, prompt}
			},
		},
		"anthropic": {
			Command: "claude",
			BuildArgs: func(model, prompt string) []string {
				return []string{"--print", "--model", model, prompt}
			},
		},
		"google": {
			Command: "gemini",
			BuildArgs: func(model, prompt string) []string {
				return []string{"--model", model, prompt}
			},
		},
		"groq": {
			Command: "qwen",
			BuildArgs: func(model, prompt string) []string {
				return []string{"--model", model, prompt}
			},
		},
	}
}

// Runner invokes local generation tools as synchronous external processes.
type Runner struct {
	tools map[string]Spec
}

// NewRunner creates a Runner over the given tool table.
func NewRunner(tools map[string]Spec) *Runner {
	return &Runner{tools: tools}
}

// Lookup returns the tool spec for a provider key.
func (r *Runner) Lookup(provider string) (Spec, bool) {
	spec, ok := r.tools[provider]
	return spec, ok
}

// Run executes the provider's tool and returns its stdout. A nonzero exit
// fails with an INVOCATION_ERROR carrying the captured stderr. The context
// bounds the process lifetime.
func (r *Runner) Run(ctx context.Context, provider, model, prompt string) (string, error) {
	spec, ok := r.tools[provider]
	if !ok {
		return "", errors.Configuration(fmt.Sprintf("no CLI tool mapped for provider %s", provider)).
			WithContext("provider", provider)
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.BuildArgs(model, prompt)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := fmt.Sprintf("%s failed", spec.Command)
		if errText := strings.TrimSpace(stderr.String()); errText != "" {
			msg = fmt.Sprintf("%s: %s", msg, errText)
		}
		return "", errors.Invocation(msg, err).
			WithContext("provider", provider).
			WithContext("command", spec.Command)
	}

	return stdout.String(), nil
}
