package audio

import (
	"math"
)

const (
	// trimFrameLength and trimHopLength define the analysis frames used to
	// find leading and trailing silence
	trimFrameLength = 2048
	trimHopLength   = 512

	// DefaultTopDB is how far below the loudest frame a frame must be to count as silence
	DefaultTopDB = 20.0

	// DefaultPreEmphasis is the pre-emphasis filter coefficient
	DefaultPreEmphasis = 0.97
)

// PeakNormalize scales samples so the maximum absolute amplitude is 1.0.
// All-zero input is returned unchanged.
func PeakNormalize(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}

	// Find maximum amplitude
	var peak float64
	for _, sample := range samples {
		if abs := math.Abs(float64(sample)); abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return samples
	}

	ratio := 1.0 / peak
	normalized := make([]float32, len(samples))
	for i, sample := range samples {
		normalized[i] = float32(float64(sample) * ratio)
	}

	return normalized
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// frameRMS computes the RMS of centered frames: frame i covers
// [i*hop - frameLength/2, i*hop + frameLength/2) with zeros outside the signal.
func frameRMS(samples []float32, frameLength, hop int) []float64 {
	n := len(samples)
	frames := 1 + n/hop
	rms := make([]float64, frames)
	half := frameLength / 2

	for i := 0; i < frames; i++ {
		start := i*hop - half
		end := start + frameLength
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}

		// Scale to the full frame length so the zero padding counts
		rms[i] = CalculateRMS(samples[start:end]) * math.Sqrt(float64(end-start)/float64(frameLength))
	}

	return rms
}

// TrimSilence removes leading and trailing frames whose energy is more than
// topDB decibels below the loudest frame. Returns an empty slice when the
// signal is entirely silent.
func TrimSilence(samples []float32, topDB float64) []float32 {
	if len(samples) == 0 {
		return samples
	}

	rms := frameRMS(samples, trimFrameLength, trimHopLength)

	maxRMS := 0.0
	for _, v := range rms {
		if v > maxRMS {
			maxRMS = v
		}
	}
	if maxRMS == 0 {
		return samples[:0]
	}

	threshold := maxRMS * math.Pow(10, -topDB/20)
	first, last := -1, -1
	for i, v := range rms {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return samples[:0]
	}

	start := first * trimHopLength
	end := (last + 1) * trimHopLength
	if start > len(samples) {
		start = len(samples)
	}
	if end > len(samples) {
		end = len(samples)
	}

	return samples[start:end]
}

// PreEmphasis applies y[n] = x[n] - coef*x[n-1] (y[0] = x[0]), boosting the
// high-frequency energy of consonants
func PreEmphasis(samples []float32, coef float64) []float32 {
	if len(samples) == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = float32(float64(samples[i]) - coef*float64(samples[i-1]))
	}

	return out
}

// Resample performs simple linear interpolation resampling
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 || inputRate <= 0 || outputRate <= 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(int64(len(samples)) * int64(outputRate) / int64(inputRate))
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		// Calculate source position
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		if idx0 >= len(samples) {
			idx0 = len(samples) - 1
		}
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		// Interpolate between two samples
		fraction := srcPos - float64(idx0)
		output[i] = float32(float64(samples[idx0])*(1.0-fraction) + float64(samples[idx1])*fraction)
	}

	return output
}

// ToPCM16 converts float samples to 16-bit signed integers, clipping to range
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(math.Round(v))
	}
	return out
}

// Preprocess turns decoded samples at their native rate into a normalized
// Waveform at TargetSampleRate: peak normalization, silence trimming,
// pre-emphasis, then resampling.
func Preprocess(samples []float32, sampleRate int) (*Waveform, error) {
	normalized := PeakNormalize(samples)
	trimmed := TrimSilence(normalized, DefaultTopDB)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Err: ErrSilentAudio}
	}

	emphasized := PreEmphasis(trimmed, DefaultPreEmphasis)

	return &Waveform{
		Samples:    Resample(emphasized, sampleRate, TargetSampleRate),
		SampleRate: TargetSampleRate,
	}, nil
}
