package audio

import (
	"bytes"
	"encoding/binary"
	"io"
)

// EncodeWAV renders mono float samples as a 16-bit PCM WAV file
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	pcm := ToPCM16(samples)
	dataSize := len(pcm) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	if err := writeWAVHeader(&buf, sampleRate, dataSize); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, pcm); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeWAVHeader writes the 44-byte header for 16-bit mono PCM
func writeWAVHeader(w io.Writer, sampleRate, dataSize int) error {
	const (
		channels      = 1
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)

	header := []interface{}{
		[]byte("RIFF"),
		uint32(36 + dataSize),
		[]byte("WAVE"),
		// fmt sub-chunk
		[]byte("fmt "),
		uint32(16),        // sub-chunk size
		uint16(1),         // PCM format
		uint16(channels),  // mono
		uint32(sampleRate),
		uint32(sampleRate * blockAlign), // byte rate
		uint16(blockAlign),
		uint16(bitsPerSample),
		// data sub-chunk
		[]byte("data"),
		uint32(dataSize),
	}

	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	return nil
}
