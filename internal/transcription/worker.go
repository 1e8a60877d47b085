package transcription

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/segment"
	"github.com/lexiqai/inquiry-analyzer/internal/stt"
)

// DefaultWorkers is the number of segments transcribed concurrently
const DefaultWorkers = 4

// progressInterval is how many completed segments pass between progress logs
const progressInterval = 10

// SegmentResult is the outcome of one segment: Text on success, Err on failure
type SegmentResult struct {
	Index int
	Text  string
	Err   error
}

// OK reports whether the segment produced text
func (r SegmentResult) OK() bool {
	return r.Err == nil
}

// Texts returns the texts of successful results in the order given
func Texts(results []SegmentResult) []string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		if r.OK() {
			texts = append(texts, r.Text)
		}
	}
	return texts
}

// ProgressFunc is called after each segment completes, from the worker goroutine
type ProgressFunc func(result SegmentResult, completed, total int)

// Worker transcribes the segments of one request on a bounded pool
type Worker struct {
	model   stt.SpeechModel
	workers int
}

// NewWorker creates a worker. workers <= 0 uses DefaultWorkers.
func NewWorker(model stt.SpeechModel, workers int) *Worker {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Worker{model: model, workers: workers}
}

// TranscribeAll transcribes every segment and returns one result per segment,
// ordered by segment index. Individual failures are recorded in the results;
// an error is returned only when ctx is done or no segment produced text.
func (w *Worker) TranscribeAll(ctx context.Context, segments []segment.Segment, params stt.DecodeParams, onProgress ProgressFunc) ([]SegmentResult, error) {
	logger := observability.LoggerFromContext(ctx)
	total := len(segments)
	results := make([]SegmentResult, total)

	var completed int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	for i := range segments {
		idx, seg := i, segments[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result := w.transcribe(gctx, seg, params, logger)
			results[idx] = result

			done := int(atomic.AddInt32(&completed, 1))
			if done%progressInterval == 0 || done == total {
				logger.Info().Int("completed", done).Int("total", total).Msg("Transcription progress")
			}
			if onProgress != nil {
				onProgress(result, done, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var causes *multierror.Error
	for _, r := range results {
		if r.OK() {
			return results, nil
		}
		causes = multierror.Append(causes, fmt.Errorf("segment %d: %w", r.Index, r.Err))
	}

	return results, &NoTranscriptionError{Segments: total, Cause: causes.ErrorOrNil()}
}

func (w *Worker) transcribe(ctx context.Context, seg segment.Segment, params stt.DecodeParams, logger *zerolog.Logger) SegmentResult {
	start := time.Now()
	text, err := w.model.Transcribe(ctx, seg.Samples, audio.TargetSampleRate, params)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = errEmptyTranscript
	}

	observability.RecordSegment(err == nil, time.Since(start))
	if err != nil {
		logger.Warn().Err(err).Int("segment", seg.Index).Msg("Segment transcription failed")
		return SegmentResult{Index: seg.Index, Err: err}
	}

	logger.Debug().
		Int("segment", seg.Index).
		Dur("latency", time.Since(start)).
		Int("chars", len(text)).
		Msg("Segment transcribed")
	return SegmentResult{Index: seg.Index, Text: text}
}
