package stt

import (
	"context"
	"fmt"
)

// DecodeParams controls how a speech model decodes one segment.
// Decoding is deterministic: Temperature is always 0 in the built-in tiers.
type DecodeParams struct {
	// MaxLength is the maximum number of output tokens
	MaxLength int `yaml:"max_length" json:"max_length"`

	// Beams is the beam-search width
	Beams int `yaml:"beams" json:"beams"`

	// NoRepeatNgramSize forbids repeating n-grams of this size (0 disables)
	NoRepeatNgramSize int `yaml:"no_repeat_ngram" json:"no_repeat_ngram"`

	// Temperature is the sampling temperature
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// SpeechModel transcribes mono audio into text
type SpeechModel interface {
	// Transcribe returns the transcript of samples recorded at sampleRate
	Transcribe(ctx context.Context, samples []float32, sampleRate int, params DecodeParams) (string, error)
}

// StatusError is returned by HTTP-backed models for non-2xx responses
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.Status, e.Body)
}
