package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/inquiry-analyzer/internal/analysis"
	"github.com/lexiqai/inquiry-analyzer/internal/api"
	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/orchestrator"
	"github.com/lexiqai/inquiry-analyzer/internal/resilience"
	"github.com/lexiqai/inquiry-analyzer/internal/segment"
	"github.com/lexiqai/inquiry-analyzer/internal/stt"
	"github.com/lexiqai/inquiry-analyzer/internal/transcription"
	"github.com/lexiqai/inquiry-analyzer/internal/watsonx"
)

// App holds the wired components shared by the server and the CLI
type App struct {
	Config   *config.Config
	Pipeline *orchestrator.Pipeline
	Table    *segment.Table
	Tokens   *watsonx.TokenSource

	speechBreaker *resilience.CircuitBreaker
	logger        zerolog.Logger
}

// speechModel is implemented by every speech backend adapter
type speechModel interface {
	stt.SpeechModel
	CircuitBreaker() *resilience.CircuitBreaker
}

// New wires the pipeline from cfg
func New(cfg *config.Config) (*App, error) {
	logger := observability.GetLogger()

	model, err := newSpeechModel(cfg)
	if err != nil {
		return nil, err
	}

	table := segment.NewTable(logger)
	if cfg.TiersFile != "" {
		if err := table.Load(cfg.TiersFile); err != nil {
			return nil, fmt.Errorf("failed to load tier table: %w", err)
		}
	}

	tokens := watsonx.NewTokenSource(cfg.WatsonxAPIKey, cfg.WatsonxIAMURL)
	client := watsonx.NewClient(tokens, cfg.WatsonxProjectID, cfg.WatsonxModelID,
		watsonx.WithChatURL(cfg.WatsonxChatURL),
		watsonx.WithAPIVersion(cfg.WatsonxAPIVersion),
		watsonx.WithMaxRetries(cfg.WatsonxMaxRetries),
	)

	pipeline := orchestrator.NewPipeline(
		audio.NewLoader(cfg.MaxUploadBytes, cfg.TempDir, logger),
		table,
		transcription.NewWorker(model, cfg.SegmentWorkers),
		analysis.NewAnalyzer(client),
		orchestrator.WithRemoteCheck(cfg.RemoteSettings),
	)

	return &App{
		Config:        cfg,
		Pipeline:      pipeline,
		Table:         table,
		Tokens:        tokens,
		speechBreaker: model.CircuitBreaker(),
		logger:        logger,
	}, nil
}

func newSpeechModel(cfg *config.Config) (speechModel, error) {
	switch cfg.SpeechBackend {
	case "whisper":
		return stt.NewWhisperModel(cfg), nil
	case "deepgram":
		return stt.NewDeepgramModel(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported speech backend %q", cfg.SpeechBackend)
	}
}

// WatchTiers reloads the tier file on change until ctx is cancelled. It is a
// no-op when no file is configured or watching is disabled.
func (a *App) WatchTiers(ctx context.Context) {
	if a.Config.TiersFile == "" || !a.Config.WatchTiersFile {
		return
	}
	go func() {
		if err := a.Table.Watch(ctx, a.Config.TiersFile); err != nil {
			a.logger.Error().Err(err).Str("path", a.Config.TiersFile).Msg("Tier file watcher stopped")
		}
	}()
}

// Checks returns the dependency checks behind /ready and the gRPC health service
func (a *App) Checks() []observability.DependencyCheck {
	return []observability.DependencyCheck{
		{
			Name: "speech",
			Check: func(ctx context.Context) (bool, error) {
				if a.speechBreaker.GetState() == resilience.StateOpen {
					return false, fmt.Errorf("%s circuit breaker is open", a.speechBreaker.Name())
				}
				return true, nil
			},
		},
		{
			Name: "watsonx",
			Check: func(ctx context.Context) (bool, error) {
				if err := a.Config.RemoteSettings(); err != nil {
					return false, err
				}
				return true, nil
			},
		},
	}
}

// Details reports configuration and credential state on /health
func (a *App) Details() map[string]interface{} {
	status := a.Tokens.Status()
	token := map[string]interface{}{
		"cached": status.Cached,
		"valid":  status.Valid,
	}
	if status.Cached {
		token["expires_at"] = status.ExpiresAt.UTC().Format(time.RFC3339)
	}

	state, requests, failures, failureRate := a.speechBreaker.GetStats()
	circuit := map[string]interface{}{
		"state":        state.String(),
		"requests":     requests,
		"failures":     failures,
		"failure_rate": failureRate,
	}

	return map[string]interface{}{
		"speech_backend":     a.Config.SpeechBackend,
		"speech_circuit":     circuit,
		"segment_workers":    a.Config.SegmentWorkers,
		"tiers_file":         a.Config.TiersFile,
		"watsonx_configured": a.Config.RemoteSettings() == nil,
		"watsonx_model_id":   a.Config.WatsonxModelID,
		"token":              token,
	}
}

// Router builds the HTTP handler
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Options{
		Service:        a.Pipeline,
		MaxUploadBytes: a.Config.MaxUploadBytes,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		MetricsEnabled: a.Config.MetricsEnabled,
		Details:        a.Details,
		Checks:         a.Checks(),
	})
}
