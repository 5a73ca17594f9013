// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

// Package xai provides an xAI Grok API provider for the arena.
// Grok speaks the OpenAI-compatible wire format.
package xai

import (
	"github.com/jllopis/mafiarena/providers/openaicompat"
)

const (
	// DefaultBaseURL is the xAI API endpoint.
	DefaultBaseURL = "https://api.x.ai/v1"
)

// New creates a new xAI provider.
func New(apiKey string, opts ...openaicompat.Option) *openaicompat.Client {
	opts = append([]openaicompat.Option{openaicompat.WithModel("grok-3-mini")}, opts...)
	return openaicompat.New(apiKey, DefaultBaseURL, opts...)
}
