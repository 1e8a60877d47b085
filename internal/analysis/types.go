package analysis

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when a stage is asked to work on empty text
var ErrEmptyInput = errors.New("input text is required")

// Message is one chat turn sent to the text-generation model
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Parameters controls text generation
type Parameters struct {
	DecodingMethod    string  `json:"decoding_method,omitempty"`
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
}

// ChatCompletion generates a reply to a conversation
type ChatCompletion interface {
	Generate(ctx context.Context, messages []Message, params Parameters) (string, error)
}

// IntentParameters are used for intent recognition
var IntentParameters = Parameters{
	DecodingMethod:    "greedy",
	MaxNewTokens:      100,
	Temperature:       0.1,
	TopP:              0.9,
	RepetitionPenalty: 1.1,
}

// ResolutionParameters are used for resolution generation
var ResolutionParameters = Parameters{
	DecodingMethod:    "greedy",
	MaxNewTokens:      1500,
	Temperature:       0.1,
	TopP:              0.9,
	RepetitionPenalty: 1.1,
}
