package segment

import (
	"github.com/lexiqai/inquiry-analyzer/internal/audio"
)

// Segment is one slice of the source waveform
type Segment struct {
	Index int

	// Start and End are the sample range in the source waveform (End exclusive)
	Start int
	End   int

	// Samples holds the materialized range, zero padded to the window length when Padded
	Samples []float32
	Padded  bool
}

// Len returns the number of source samples the segment covers (excluding padding)
func (s Segment) Len() int {
	return s.End - s.Start
}

// Plan splits w into ordered, overlapping windows covering every sample.
// The first window is never padded; later windows shorter than the window
// length are right-padded with zeros.
func Plan(w *audio.Waveform, tier Tier, params TierParams) []Segment {
	n := w.Len()
	window := params.WindowSamples(w.SampleRate)
	overlap := params.OverlapSamples(w.SampleRate)

	if tier == TierShort || window <= 0 || n <= window {
		return []Segment{{Index: 0, Start: 0, End: n, Samples: w.Samples}}
	}
	if overlap >= window {
		overlap = window - 1
	}

	segments := make([]Segment, 0, n/(window-overlap)+1)
	start := 0
	for {
		end := start + window
		if end > n {
			end = n
		}

		seg := Segment{
			Index:   len(segments),
			Start:   start,
			End:     end,
			Samples: w.Samples[start:end],
		}
		if end-start < window && len(segments) > 0 {
			padded := make([]float32, window)
			copy(padded, seg.Samples)
			seg.Samples = padded
			seg.Padded = true
		}
		segments = append(segments, seg)

		if end >= n {
			break
		}
		start = end - overlap
	}

	return segments
}
