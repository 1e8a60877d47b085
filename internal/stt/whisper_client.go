package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/resilience"
)

// WhisperModel implements SpeechModel against a whisper-compatible HTTP
// inference server (multipart WAV upload, JSON {"text": ...} response)
type WhisperModel struct {
	url        string
	httpClient *http.Client
	guard      *guard
}

// NewWhisperModel creates a whisper HTTP client from configuration
func NewWhisperModel(cfg *config.Config) *WhisperModel {
	return &WhisperModel{
		url:        cfg.WhisperURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.WhisperTimeout) * time.Second},
		guard:      newGuard("whisper", cfg),
	}
}

// CircuitBreaker exposes the breaker for health reporting
func (m *WhisperModel) CircuitBreaker() *resilience.CircuitBreaker {
	return m.guard.breaker
}

// Transcribe uploads the segment as WAV and returns the recognised text
func (m *WhisperModel) Transcribe(ctx context.Context, samples []float32, sampleRate int, params DecodeParams) (string, error) {
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("whisper: encode wav: %w", err)
	}

	var text string
	err = m.guard.do(ctx, func(ctx context.Context) error {
		var callErr error
		text, callErr = m.post(ctx, wav, params)
		return callErr
	})
	return text, err
}

func (m *WhisperModel) post(ctx context.Context, wav []byte, params DecodeParams) (string, error) {
	// Build multipart form.
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write form file: %w", err)
	}

	fields := map[string]string{
		"response_format":      "json",
		"temperature":          strconv.FormatFloat(params.Temperature, 'f', -1, 64),
		"beam_size":            strconv.Itoa(params.Beams),
		"max_tokens":           strconv.Itoa(params.MaxLength),
		"no_repeat_ngram_size": strconv.Itoa(params.NoRepeatNgramSize),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("whisper: write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("whisper: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Backend: "whisper", Status: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: decode response: %w", err)
	}
	return result.Text, nil
}
