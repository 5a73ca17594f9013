// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

package openai

import (
	"testing"

	"github.com/jllopis/mafiarena/pkg/llm"
	"github.com/openai/openai-go"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ llm.Provider = (*Provider)(nil)
}

func TestNewProvider(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-5-mini" {
		t.Errorf("expected model gpt-5-mini, got %s", p.model)
	}
}

func TestWithModel(t *testing.T) {
	p := New(WithModel("gpt-5"))
	if p.model != "gpt-5" {
		t.Errorf("expected model gpt-5, got %s", p.model)
	}
}

func TestNewWithAPIKey(t *testing.T) {
	p := NewWithAPIKey("test-key")
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

func TestConvertResponse(t *testing.T) {
	completion := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Content: `{"strategy":"s","speech":"","vote":null}`,
				},
			},
		},
		Usage: openai.CompletionUsage{
			PromptTokens:     30,
			CompletionTokens: 12,
			TotalTokens:      42,
		},
	}

	resp := convertResponse(completion)
	if resp.Content != `{"strategy":"s","speech":"","vote":null}` {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 42 {
		t.Errorf("expected total tokens 42, got %d", resp.Usage.TotalTokens)
	}
}
