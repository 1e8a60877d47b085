package audio

import (
	"errors"
	"fmt"
	"time"
)

// TargetSampleRate is the rate every Waveform is normalized to before segmentation
const TargetSampleRate = 16000

var (
	// ErrPayloadTooLarge is returned before decoding when the encoded input exceeds the loader's ceiling
	ErrPayloadTooLarge = errors.New("audio payload too large")

	// ErrSilentAudio is the cause of a DecodeError when nothing is left after trimming silence
	ErrSilentAudio = errors.New("audio contains no signal above the silence threshold")
)

// DecodeError reports that the input could not be turned into a waveform
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Waveform is a mono sequence of float samples in [-1, 1]
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples
func (w *Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns the playback length of the waveform
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Seconds returns the playback length in seconds
func (w *Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}
