package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	restv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/resilience"
)

// DeepgramModel implements SpeechModel using Deepgram's pre-recorded API.
// Deepgram chooses its own decoding strategy, so beam and length parameters
// are only logged.
type DeepgramModel struct {
	config *config.Config
	client *restv1api.Client
	guard  *guard
	logger zerolog.Logger
}

// NewDeepgramModel creates a new Deepgram pre-recorded client
func NewDeepgramModel(cfg *config.Config) *DeepgramModel {
	rest := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})

	return &DeepgramModel{
		config: cfg,
		client: restv1api.New(rest),
		guard:  newGuard("deepgram", cfg),
		logger: observability.GetLogger().With().Str("component", "deepgram").Logger(),
	}
}

// CircuitBreaker exposes the breaker for health reporting
func (d *DeepgramModel) CircuitBreaker() *resilience.CircuitBreaker {
	return d.guard.breaker
}

// Transcribe sends the segment as WAV and returns the best alternative
func (d *DeepgramModel) Transcribe(ctx context.Context, samples []float32, sampleRate int, params DecodeParams) (string, error) {
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("deepgram: encode wav: %w", err)
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:     d.config.DeepgramModel,
		Language:  d.config.DeepgramLanguage,
		Punctuate: true,
	}

	d.logger.Debug().
		Int("samples", len(samples)).
		Int("beams", params.Beams).
		Int("max_length", params.MaxLength).
		Msg("Sending segment to Deepgram")

	var text string
	err = d.guard.do(ctx, func(ctx context.Context) error {
		res, callErr := d.client.FromStream(ctx, bytes.NewReader(wav), options)
		if callErr != nil {
			return fmt.Errorf("deepgram: %w", callErr)
		}

		transcript, parseErr := bestTranscript(res)
		if parseErr != nil {
			return parseErr
		}
		text = transcript
		return nil
	})
	return text, err
}

// bestTranscript extracts the first alternative of the first channel.
// The response is re-decoded into the handful of fields we read.
func bestTranscript(res interface{}) (string, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("deepgram: encode response: %w", err)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}

	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
