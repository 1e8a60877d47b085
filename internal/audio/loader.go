package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultMaxBytes is the default ceiling on encoded input size (100MB)
const DefaultMaxBytes int64 = 100 * 1024 * 1024

// Loader turns encoded MP3 bytes into a normalized 16kHz mono Waveform
type Loader struct {
	maxBytes int64
	tempDir  string
	logger   zerolog.Logger
}

// NewLoader creates a loader. maxBytes <= 0 uses DefaultMaxBytes and an empty
// tempDir uses the system temp directory.
func NewLoader(maxBytes int64, tempDir string, logger zerolog.Logger) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{
		maxBytes: maxBytes,
		tempDir:  tempDir,
		logger:   logger.With().Str("component", "audio_loader").Logger(),
	}
}

// MaxBytes returns the configured input ceiling
func (l *Loader) MaxBytes() int64 {
	return l.maxBytes
}

// Load decodes and normalizes data. The bytes are staged in a request-scoped
// temp file which is removed before Load returns.
func (l *Loader) Load(ctx context.Context, data []byte) (*Waveform, error) {
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, len(data), l.maxBytes)
	}
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty input")}
	}

	tmp, err := os.CreateTemp(l.tempDir, "inquiry-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn().Err(err).Str("path", tmp.Name()).Msg("Failed to remove temp audio file")
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return nil, fmt.Errorf("failed to stage audio: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to rewind staged audio: %w", err)
	}

	samples, rate, err := decodeMP3(ctx, tmp)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(samples) == 0 || rate <= 0 {
		return nil, &DecodeError{Err: errors.New("no audio samples decoded")}
	}

	waveform, err := Preprocess(samples, rate)
	if err != nil {
		return nil, err
	}

	l.logger.Debug().
		Int("input_bytes", len(data)).
		Int("native_rate", rate).
		Int("decoded_samples", len(samples)).
		Int("samples", waveform.Len()).
		Float64("duration_seconds", waveform.Seconds()).
		Msg("Audio loaded")

	return waveform, nil
}

// ReadFile reads an encoded file from disk, refusing files larger than
// maxBytes before any content is read. maxBytes <= 0 uses DefaultMaxBytes.
func ReadFile(path string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, info.Size(), maxBytes)
	}

	// The file may grow between Stat and Read
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, maxBytes)
	}
	return data, nil
}
