package orchestrator

import (
	"context"
)

// Stage names a step of the pipeline reported to observers
type Stage string

const (
	StageTier          Stage = "tier"
	StageSegment       Stage = "segment"
	StageTranscription Stage = "transcription"
	StageIntent        Stage = "intent"
	StageResolution    Stage = "resolution"
)

// Event is a progress notification emitted while a request runs
type Event struct {
	Stage Stage `json:"stage"`

	// Set for StageTier
	Tier            string  `json:"tier,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Segments        int     `json:"segments,omitempty"`

	// Set for StageSegment
	Segment   int    `json:"segment,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Error     string `json:"error,omitempty"`

	// Set for StageTranscription, StageIntent and StageResolution
	Text string `json:"text,omitempty"`
}

// Observer receives pipeline events. It may be called from several
// goroutines while segments are transcribed.
type Observer func(Event)

// Analysis is the result of the full pipeline
type Analysis struct {
	Transcription string `json:"transcription"`
	Intent        string `json:"intent"`
	Resolution    string `json:"resolution"`
}

type observerKey struct{}

// WithObserver attaches obs to ctx so the pipeline reports progress to it
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

// ObserverFromContext returns the observer attached by WithObserver, or nil
func ObserverFromContext(ctx context.Context) Observer {
	obs, _ := ctx.Value(observerKey{}).(Observer)
	return obs
}

func emit(ctx context.Context, event Event) {
	if obs := ObserverFromContext(ctx); obs != nil {
		obs(event)
	}
}
