// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for arena telemetry. LLM attributes follow the
// standard gen_ai conventions.
const (
	AttrPlayerName = "arena.player.name"
	AttrPlayerRole = "arena.player.role"
	AttrPhase      = "arena.phase"
	AttrTurn       = "arena.turn"
	AttrMode       = "arena.mode"
	AttrGameID     = "arena.game.id"

	AttrLLMModel       = "gen_ai.request.model"
	AttrLLMProvider    = "gen_ai.system"
	AttrLLMTokensInput = "gen_ai.usage.input_tokens"
	AttrLLMTokensOut   = "gen_ai.usage.output_tokens"
	AttrLLMDurationMs  = "gen_ai.duration_ms"
)

// TurnAttributes returns common attributes for a generation span.
func TurnAttributes(player, provider, model string, turn int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPlayerName, player),
		attribute.Int(AttrTurn, turn),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	return attrs
}
