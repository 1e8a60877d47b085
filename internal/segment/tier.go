package segment

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexiqai/inquiry-analyzer/internal/stt"
)

// Tier is the duration-based policy bucket that decides how audio is split
// and how expensively each piece is decoded
type Tier int

const (
	TierShort    Tier = iota // up to ShortLimit, transcribed in one piece
	TierLong                 // up to LongLimit, 30s windows
	TierVeryLong             // beyond LongLimit, 20s windows with cheaper decoding
)

const (
	// ShortLimit is the longest recording handled without splitting
	ShortLimit = 30 * time.Second

	// LongLimit is the longest recording handled by the LONG tier
	LongLimit = 600 * time.Second
)

// Tiers lists every tier in ascending duration order
var Tiers = []Tier{TierShort, TierLong, TierVeryLong}

func (t Tier) String() string {
	switch t {
	case TierShort:
		return "SHORT"
	case TierLong:
		return "LONG"
	case TierVeryLong:
		return "VERY_LONG"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier accepts the tier names used in override files, case-insensitively
func ParseTier(name string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SHORT":
		return TierShort, nil
	case "LONG":
		return TierLong, nil
	case "VERY_LONG", "VERYLONG", "VERY-LONG":
		return TierVeryLong, nil
	}
	return 0, fmt.Errorf("unknown tier %q", name)
}

// SelectTier maps a total duration to its tier
func SelectTier(duration time.Duration) Tier {
	switch {
	case duration <= ShortLimit:
		return TierShort
	case duration <= LongLimit:
		return TierLong
	default:
		return TierVeryLong
	}
}

// TierFor selects the tier for a waveform of n samples at sampleRate
func TierFor(n, sampleRate int) Tier {
	if sampleRate <= 0 {
		return TierShort
	}
	return SelectTier(time.Duration(float64(n) / float64(sampleRate) * float64(time.Second)))
}

// TierParams holds the segmentation and decoding parameters of one tier.
// A zero Window means the whole waveform is one segment.
type TierParams struct {
	Window  time.Duration
	Overlap time.Duration
	Decode  stt.DecodeParams
}

// WindowSamples converts the window to a sample count at sampleRate
func (p TierParams) WindowSamples(sampleRate int) int {
	return durationToSamples(p.Window, sampleRate)
}

// OverlapSamples converts the overlap to a sample count at sampleRate
func (p TierParams) OverlapSamples(sampleRate int) int {
	return durationToSamples(p.Overlap, sampleRate)
}

func (p TierParams) validate(tier Tier) error {
	if tier == TierShort {
		return nil
	}
	if p.Window <= 0 {
		return fmt.Errorf("tier %s: window must be positive, got %s", tier, p.Window)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("tier %s: overlap must not be negative, got %s", tier, p.Overlap)
	}
	if p.Overlap >= p.Window {
		return fmt.Errorf("tier %s: overlap %s must be shorter than window %s", tier, p.Overlap, p.Window)
	}
	if p.Decode.MaxLength <= 0 || p.Decode.Beams <= 0 {
		return fmt.Errorf("tier %s: max_length and beams must be positive", tier)
	}
	return nil
}

func durationToSamples(d time.Duration, sampleRate int) int {
	return int(d.Seconds()*float64(sampleRate) + 0.5)
}

// DefaultParams returns the built-in tier table
func DefaultParams() Params {
	full := stt.DecodeParams{MaxLength: 448, Beams: 5, NoRepeatNgramSize: 3}
	return Params{
		TierShort: {
			Decode: full,
		},
		TierLong: {
			Window:  30 * time.Second,
			Overlap: 2 * time.Second,
			Decode:  full,
		},
		TierVeryLong: {
			Window:  20 * time.Second,
			Overlap: 1 * time.Second,
			Decode:  stt.DecodeParams{MaxLength: 224, Beams: 3, NoRepeatNgramSize: 2},
		},
	}
}

// Params is an immutable snapshot of the tier table
type Params map[Tier]TierParams

// For returns the parameters of tier, falling back to the built-in defaults
func (p Params) For(tier Tier) TierParams {
	if params, ok := p[tier]; ok {
		return params
	}
	return DefaultParams()[tier]
}
