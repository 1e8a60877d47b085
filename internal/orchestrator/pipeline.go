package orchestrator

import (
	"context"
	"fmt"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/segment"
	"github.com/lexiqai/inquiry-analyzer/internal/transcription"
)

// AudioLoader decodes an uploaded payload into a preprocessed waveform
type AudioLoader interface {
	Load(ctx context.Context, data []byte) (*audio.Waveform, error)
}

// TextAnalyzer runs the two text-generation stages
type TextAnalyzer interface {
	RecognizeIntent(ctx context.Context, text string) (string, error)
	GenerateResolution(ctx context.Context, content, intent string) (string, error)
}

// Pipeline drives loader, planner, worker and reconciler for one request,
// then the intent and resolution stages when a full analysis is requested
type Pipeline struct {
	loader      AudioLoader
	table       *segment.Table
	worker      *transcription.Worker
	analyzer    TextAnalyzer
	remoteCheck func() error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRemoteCheck sets a check run before any text-generation stage, such
// as verifying that remote credentials are configured
func WithRemoteCheck(check func() error) Option {
	return func(p *Pipeline) {
		p.remoteCheck = check
	}
}

// NewPipeline creates a pipeline
func NewPipeline(loader AudioLoader, table *segment.Table, worker *transcription.Worker, analyzer TextAnalyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:   loader,
		table:    table,
		worker:   worker,
		analyzer: analyzer,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// begin makes sure the request has a correlation id and logger
func begin(ctx context.Context) context.Context {
	if observability.CorrelationIDFromContext(ctx) != "" {
		return ctx
	}
	return observability.ContextWithCorrelationID(ctx, "")
}

// Transcribe turns encoded audio into a single transcript
func (p *Pipeline) Transcribe(ctx context.Context, data []byte) (string, error) {
	ctx = begin(ctx)
	timer := observability.StartRequest("transcribe")
	text, err := p.transcribe(ctx, data)
	timer.Done(err)
	return text, err
}

func (p *Pipeline) transcribe(ctx context.Context, data []byte) (string, error) {
	logger := observability.LoggerFromContext(ctx)

	waveform, err := p.loader.Load(ctx, data)
	if err != nil {
		logger.Error().Err(err).Int("bytes", len(data)).Msg("Audio loading failed")
		return "", err
	}
	observability.RecordAudio(len(data), waveform.Duration())

	// The tier and its parameters are fixed for the rest of the request
	tier := segment.TierFor(waveform.Len(), waveform.SampleRate)
	params := p.table.Snapshot().For(tier)
	segments := segment.Plan(waveform, tier, params)
	observability.RecordTier(tier.String())

	logger.Info().
		Str("tier", tier.String()).
		Float64("duration_seconds", waveform.Seconds()).
		Int("segments", len(segments)).
		Msg("Segmentation planned")
	emit(ctx, Event{
		Stage:           StageTier,
		Tier:            tier.String(),
		DurationSeconds: waveform.Seconds(),
		Segments:        len(segments),
	})

	results, err := p.worker.TranscribeAll(ctx, segments, params.Decode, func(r transcription.SegmentResult, completed, total int) {
		event := Event{Stage: StageSegment, Segment: r.Index, Completed: completed, Segments: total}
		if r.Err != nil {
			event.Failed = true
			event.Error = r.Err.Error()
		}
		emit(ctx, event)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed")
		return "", err
	}

	var text string
	if len(segments) == 1 && !segments[0].Padded {
		text = results[0].Text
	} else {
		text = transcription.Reconcile(transcription.Texts(results))
	}

	logger.Info().Int("chars", len(text)).Msg("Transcription completed")
	emit(ctx, Event{Stage: StageTranscription, Text: text})
	return text, nil
}

// RecognizeIntent classifies text
func (p *Pipeline) RecognizeIntent(ctx context.Context, text string) (string, error) {
	ctx = begin(ctx)
	if err := p.checkRemote(); err != nil {
		return "", err
	}
	return p.recognizeIntent(ctx, text)
}

func (p *Pipeline) recognizeIntent(ctx context.Context, text string) (string, error) {
	intent, err := p.analyzer.RecognizeIntent(ctx, text)
	if err != nil {
		return "", err
	}
	emit(ctx, Event{Stage: StageIntent, Text: intent})
	return intent, nil
}

// GenerateResolution produces guidance for content and its intent
func (p *Pipeline) GenerateResolution(ctx context.Context, content, intent string) (string, error) {
	ctx = begin(ctx)
	if err := p.checkRemote(); err != nil {
		return "", err
	}
	return p.generateResolution(ctx, content, intent)
}

func (p *Pipeline) generateResolution(ctx context.Context, content, intent string) (string, error) {
	resolution, err := p.analyzer.GenerateResolution(ctx, content, intent)
	if err != nil {
		return "", err
	}
	emit(ctx, Event{Stage: StageResolution, Text: resolution})
	return resolution, nil
}

// Analyze runs transcription, intent recognition and resolution generation
// in order. A failing stage stops the pipeline.
func (p *Pipeline) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	ctx = begin(ctx)
	timer := observability.StartRequest("analyze")
	result, err := p.analyze(ctx, data)
	timer.Done(err)
	return result, err
}

func (p *Pipeline) analyze(ctx context.Context, data []byte) (*Analysis, error) {
	if err := p.checkRemote(); err != nil {
		return nil, err
	}

	transcript, err := p.transcribe(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	intent, err := p.recognizeIntent(ctx, transcript)
	if err != nil {
		return nil, err
	}

	resolution, err := p.generateResolution(ctx, transcript, intent)
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Msg("Full analysis completed")
	return &Analysis{
		Transcription: transcript,
		Intent:        intent,
		Resolution:    resolution,
	}, nil
}

func (p *Pipeline) checkRemote() error {
	if p.remoteCheck != nil {
		if err := p.remoteCheck(); err != nil {
			return err
		}
	}
	if p.analyzer == nil {
		return fmt.Errorf("text analysis is not configured")
	}
	return nil
}
