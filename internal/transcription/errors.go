package transcription

import (
	"errors"
	"fmt"
)

// ErrNoTranscriptionProduced is matched when every segment of a batch failed
var ErrNoTranscriptionProduced = errors.New("no transcription produced")

// NoTranscriptionError carries the per-segment causes of a batch in which
// no segment produced text
type NoTranscriptionError struct {
	Segments int
	Cause    error
}

func (e *NoTranscriptionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: all %d segments failed", ErrNoTranscriptionProduced, e.Segments)
	}
	return fmt.Sprintf("%s: all %d segments failed: %v", ErrNoTranscriptionProduced, e.Segments, e.Cause)
}

func (e *NoTranscriptionError) Is(target error) bool {
	return target == ErrNoTranscriptionProduced
}

func (e *NoTranscriptionError) Unwrap() error {
	return e.Cause
}

// errEmptyTranscript marks a segment the model answered with no text
var errEmptyTranscript = errors.New("model returned empty transcript")
