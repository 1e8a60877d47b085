package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits interleaved 16-bit little-endian stereo
const mp3BytesPerFrame = 4

// decodeMP3 decodes an MP3 stream into mono float samples at the stream's native rate
func decodeMP3(ctx context.Context, r io.Reader) ([]float32, int, error) {
	decoder, err := mp3.NewDecoder(withContext(ctx, r))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid mp3 stream: %w", err)
	}

	var samples []float32
	if length := decoder.Length(); length > 0 {
		samples = make([]float32, 0, length/mp3BytesPerFrame)
	}

	buf := make([]byte, 64*1024)
	var carry []byte
	for {
		n, readErr := decoder.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}
			whole := len(chunk) - len(chunk)%mp3BytesPerFrame
			samples = appendMonoFrames(samples, chunk[:whole])
			if whole < len(chunk) {
				carry = append([]byte(nil), chunk[whole:]...)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, 0, fmt.Errorf("mp3 decode: %w", readErr)
		}
	}

	return samples, decoder.SampleRate(), nil
}

// appendMonoFrames down-mixes interleaved stereo PCM16 frames to mono floats
func appendMonoFrames(dst []float32, pcm []byte) []float32 {
	for i := 0; i+mp3BytesPerFrame <= len(pcm); i += mp3BytesPerFrame {
		left := int16(binary.LittleEndian.Uint16(pcm[i:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i+2:]))
		dst = append(dst, (float32(left)+float32(right))/2/32768.0)
	}
	return dst
}

// contextReader stops a long decode once the request context is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// contextReadSeeker keeps the Seek method visible so the decoder can compute the stream length
type contextReadSeeker struct {
	contextReader
	s io.Seeker
}

func (c *contextReadSeeker) Seek(offset int64, whence int) (int64, error) {
	return c.s.Seek(offset, whence)
}

func withContext(ctx context.Context, r io.Reader) io.Reader {
	if s, ok := r.(io.Seeker); ok {
		return &contextReadSeeker{contextReader: contextReader{ctx: ctx, r: r}, s: s}
	}
	return &contextReader{ctx: ctx, r: r}
}
