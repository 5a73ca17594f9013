package game

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/jllopis/mafiarena/pkg/errors"
)

// Decision is the structured output every backend must produce for a turn.
// It is the sole wire contract crossing into and out of the generative
// backend: exactly these three fields, nothing else.
type Decision struct {
	// Strategy is the agent's rolling summary of intent, target <=100 words.
	Strategy string `json:"strategy"`
	// Speech may be empty (silent ballot during Voting).
	Speech string `json:"speech"`
	// Vote is a nominee name or null. Its legal value set is phase and role
	// dependent; shape is validated here, domain legality is the referee's.
	Vote *string `json:"vote"`
}

// VoteTarget returns the vote value and whether one was cast.
func (d Decision) VoteTarget() (string, bool) {
	if d.Vote == nil {
		return "", false
	}
	return *d.Vote, true
}

// CleanResponse strips markdown code fence delimiters (with or without a
// language tag) and surrounding whitespace from raw backend output.
func CleanResponse(text string) string {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}

// ParseDecision cleans raw backend output and decodes it against the
// decision contract. Unknown fields, missing fields, trailing content and
// malformed JSON all fail with a VALIDATION_ERROR so prompting defects
// surface immediately.
func ParseDecision(text string) (Decision, error) {
	clean := CleanResponse(text)
	if clean == "" {
		return Decision{}, errors.Validation("empty response", nil)
	}

	var wire struct {
		Strategy *string `json:"strategy"`
		Speech   *string `json:"speech"`
		Vote     *string `json:"vote"`
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return Decision{}, errors.Validation("response is not a decision object", err).
			WithContext("raw", text)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Decision{}, errors.Validation("trailing content after decision object", nil).
			WithContext("raw", text)
	}

	if wire.Strategy == nil {
		return Decision{}, errors.Validation("decision is missing the strategy field", nil)
	}
	if wire.Speech == nil {
		return Decision{}, errors.Validation("decision is missing the speech field", nil)
	}

	return Decision{
		Strategy: *wire.Strategy,
		Speech:   *wire.Speech,
		Vote:     wire.Vote,
	}, nil
}
