package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/segment"
	"github.com/lexiqai/inquiry-analyzer/internal/stt"
	"github.com/lexiqai/inquiry-analyzer/internal/transcription"
)

type fakeLoader struct {
	waveform *audio.Waveform
	err      error
	calls    int
}

func (l *fakeLoader) Load(ctx context.Context, data []byte) (*audio.Waveform, error) {
	l.calls++
	return l.waveform, l.err
}

// keyedModel answers by the first sample of each segment
type keyedModel struct {
	mu    sync.Mutex
	texts map[int]string
	err   error
	calls int
}

func (m *keyedModel) Transcribe(ctx context.Context, samples []float32, sampleRate int, params stt.DecodeParams) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.texts[int(samples[0])], nil
}

type fakeAnalyzer struct {
	intent        string
	intentErr     error
	resolution    string
	resolutionErr error

	intentInputs     []string
	resolutionInputs [][2]string
}

func (a *fakeAnalyzer) RecognizeIntent(ctx context.Context, text string) (string, error) {
	a.intentInputs = append(a.intentInputs, text)
	return a.intent, a.intentErr
}

func (a *fakeAnalyzer) GenerateResolution(ctx context.Context, content, intent string) (string, error) {
	a.resolutionInputs = append(a.resolutionInputs, [2]string{content, intent})
	return a.resolution, a.resolutionErr
}

// rampWaveform returns seconds of audio whose sample i holds i/1000, so
// segment starts are distinguishable by their first sample
func rampWaveform(seconds int) *audio.Waveform {
	n := seconds * audio.TargetSampleRate
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i / 1000)
	}
	return &audio.Waveform{Samples: samples, SampleRate: audio.TargetSampleRate}
}

// recorder collects observer events from concurrent callers
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) stages(stage Stage) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

func newTestPipeline(loader AudioLoader, model stt.SpeechModel, analyzer TextAnalyzer, opts ...Option) *Pipeline {
	return NewPipeline(loader, segment.NewTable(zerolog.Nop()), transcription.NewWorker(model, 2), analyzer, opts...)
}

func TestPipeline_TranscribeShort(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(5)}
	model := &keyedModel{texts: map[int]string{0: "what is the gst rate"}}
	p := newTestPipeline(loader, model, nil)

	rec := &recorder{}
	text, err := p.Transcribe(WithObserver(context.Background(), rec.observe), []byte("mp3"))
	require.NoError(t, err)

	assert.Equal(t, "what is the gst rate", text)
	assert.Equal(t, 1, model.calls)

	tiers := rec.stages(StageTier)
	require.Len(t, tiers, 1)
	assert.Equal(t, "SHORT", tiers[0].Tier)
	assert.Equal(t, 1, tiers[0].Segments)
	assert.Len(t, rec.stages(StageTranscription), 1)
}

func TestPipeline_TranscribeLongReconciles(t *testing.T) {
	// 65 s at the LONG tier: windows start at 0 s, 28 s and 56 s
	loader := &fakeLoader{waveform: rampWaveform(65)}
	model := &keyedModel{texts: map[int]string{
		0:   "hello there my friend",
		448: "my friend how are you",
		896: "are you doing well",
	}}
	p := newTestPipeline(loader, model, nil)

	rec := &recorder{}
	text, err := p.Transcribe(WithObserver(context.Background(), rec.observe), []byte("mp3"))
	require.NoError(t, err)

	assert.Equal(t, "hello there my friend how are you doing well", text)
	assert.Equal(t, 3, model.calls)

	tiers := rec.stages(StageTier)
	require.Len(t, tiers, 1)
	assert.Equal(t, "LONG", tiers[0].Tier)
	assert.Equal(t, 3, tiers[0].Segments)
	assert.Len(t, rec.stages(StageSegment), 3)
}

func TestPipeline_LoaderErrorStopsRequest(t *testing.T) {
	loadErr := &audio.DecodeError{Err: errors.New("bad frame")}
	model := &keyedModel{}
	p := newTestPipeline(&fakeLoader{err: loadErr}, model, nil)

	_, err := p.Transcribe(context.Background(), []byte("junk"))

	var decodeErr *audio.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 0, model.calls)
}

func TestPipeline_Analyze(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(5)}
	model := &keyedModel{texts: map[int]string{0: "how do i register for gst"}}
	analyzer := &fakeAnalyzer{intent: "GST_REGISTRATION", resolution: "1. Apply online"}
	p := newTestPipeline(loader, model, analyzer)

	rec := &recorder{}
	result, err := p.Analyze(WithObserver(context.Background(), rec.observe), []byte("mp3"))
	require.NoError(t, err)

	assert.Equal(t, &Analysis{
		Transcription: "how do i register for gst",
		Intent:        "GST_REGISTRATION",
		Resolution:    "1. Apply online",
	}, result)
	assert.Equal(t, []string{"how do i register for gst"}, analyzer.intentInputs)
	assert.Equal(t, [][2]string{{"how do i register for gst", "GST_REGISTRATION"}}, analyzer.resolutionInputs)
	assert.Len(t, rec.stages(StageIntent), 1)
	assert.Len(t, rec.stages(StageResolution), 1)
}

func TestPipeline_AnalyzeIntentFailureSkipsResolution(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(5)}
	model := &keyedModel{texts: map[int]string{0: "hello"}}
	analyzer := &fakeAnalyzer{intentErr: errors.New("remote down")}
	p := newTestPipeline(loader, model, analyzer)

	result, err := p.Analyze(context.Background(), []byte("mp3"))

	assert.Nil(t, result)
	assert.EqualError(t, err, "remote down")
	assert.Empty(t, analyzer.resolutionInputs)
}

func TestPipeline_AnalyzeNoTranscription(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(5)}
	model := &keyedModel{err: errors.New("backend error")}
	analyzer := &fakeAnalyzer{}
	p := newTestPipeline(loader, model, analyzer)

	_, err := p.Analyze(context.Background(), []byte("mp3"))

	assert.ErrorIs(t, err, transcription.ErrNoTranscriptionProduced)
	assert.Empty(t, analyzer.intentInputs)
}

func TestPipeline_RemoteCheckRunsFirst(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(5)}
	analyzer := &fakeAnalyzer{}
	missing := errors.New("credentials missing")
	p := newTestPipeline(loader, &keyedModel{}, analyzer, WithRemoteCheck(func() error { return missing }))

	_, err := p.Analyze(context.Background(), []byte("mp3"))
	assert.ErrorIs(t, err, missing)
	assert.Equal(t, 0, loader.calls)

	_, err = p.RecognizeIntent(context.Background(), "text")
	assert.ErrorIs(t, err, missing)
	_, err = p.GenerateResolution(context.Background(), "text", "OTHER")
	assert.ErrorIs(t, err, missing)
	assert.Empty(t, analyzer.intentInputs)
}

func TestPipeline_TextStagesWithoutAnalyzer(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, &keyedModel{}, nil)

	_, err := p.RecognizeIntent(context.Background(), "text")
	assert.Error(t, err)
}

func TestPipeline_KeepsCorrelationID(t *testing.T) {
	loader := &fakeLoader{waveform: rampWaveform(1)}
	analyzer := &fakeAnalyzer{intent: "OTHER"}
	p := newTestPipeline(loader, &keyedModel{}, analyzer)

	ctx := observability.ContextWithCorrelationID(context.Background(), "req-42")
	intent, err := p.RecognizeIntent(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "OTHER", intent)
	assert.Equal(t, "req-42", observability.CorrelationIDFromContext(begin(ctx)))
	assert.NotEmpty(t, observability.CorrelationIDFromContext(begin(context.Background())))
}
