// Copyright 2026 © The Mafiarena Authors
// SPDX-License-Identifier: Apache-2.0

// Package groq provides a Groq API provider for the arena.
// Groq speaks the OpenAI-compatible wire format.
package groq

import (
	"github.com/jllopis/mafiarena/providers/openaicompat"
)

const (
	// DefaultBaseURL is the Groq API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
)

// New creates a new Groq provider.
func New(apiKey string, opts ...openaicompat.Option) *openaicompat.Client {
	opts = append([]openaicompat.Option{openaicompat.WithModel("llama-3.3-70b-versatile")}, opts...)
	return openaicompat.New(apiKey, DefaultBaseURL, opts...)
}
