package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/segment"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                       "0",
		CORSAllowedOrigins:         []string{"http://localhost:3000"},
		MaxUploadBytes:             1 << 20,
		SpeechBackend:              "whisper",
		WhisperURL:                 "http://127.0.0.1:1/inference",
		WhisperTimeout:             5,
		SegmentWorkers:             2,
		WatsonxIAMURL:              "http://127.0.0.1:1/token",
		WatsonxChatURL:             "http://127.0.0.1:1/chat",
		WatsonxAPIVersion:          "2023-05-29",
		WatsonxMaxRetries:          2,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           2,
		RetryInitialBackoff:        10,
	}
}

func checkByName(checks []observability.DependencyCheck, name string) observability.DependencyCheck {
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	return observability.DependencyCheck{}
}

func TestNew_Whisper(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	details := a.Details()
	assert.Equal(t, "whisper", details["speech_backend"])
	assert.Equal(t, false, details["watsonx_configured"])
	assert.IsType(t, map[string]interface{}{}, details["token"])
}

func TestDetails_SpeechCircuitStats(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)

	circuit, ok := a.Details()["speech_circuit"].(map[string]interface{})
	require.True(t, ok, "expected speech_circuit map, got %v", a.Details()["speech_circuit"])
	assert.Equal(t, "closed", circuit["state"])
	assert.Equal(t, int64(0), circuit["requests"])
	assert.Equal(t, 0.0, circuit["failure_rate"])

	a.speechBreaker.RecordResult(true)
	a.speechBreaker.RecordResult(false)

	circuit = a.Details()["speech_circuit"].(map[string]interface{})
	assert.Equal(t, "closed", circuit["state"])
	assert.Equal(t, int64(2), circuit["requests"])
	assert.Equal(t, int64(1), circuit["failures"])
	assert.InDelta(t, 50.0, circuit["failure_rate"], 1e-9)
}

func TestNew_UnsupportedBackend(t *testing.T) {
	cfg := testConfig()
	cfg.SpeechBackend = "fax"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_InvalidTiersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers:\n  LONG:\n    window_seconds: -1\n"), 0o644))
	cfg := testConfig()
	cfg.TiersFile = path

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_TiersFileApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiers:\n  LONG:\n    window_seconds: 25\n"), 0o644))
	cfg := testConfig()
	cfg.TiersFile = path

	a, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 25.0, a.Table.Snapshot().For(segment.TierLong).Window.Seconds())
}

func TestChecks(t *testing.T) {
	cfg := testConfig()
	a, err := New(cfg)
	require.NoError(t, err)

	ok, err := checkByName(a.Checks(), "speech").Check(context.Background())
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = checkByName(a.Checks(), "watsonx").Check(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, config.ErrMissingConfiguration)

	cfg.WatsonxAPIKey = "key"
	cfg.WatsonxProjectID = "project"
	cfg.WatsonxModelID = "model"
	ok, err = checkByName(a.Checks(), "watsonx").Check(context.Background())
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestRouter_IntentWithoutCredentials(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	server := httptest.NewServer(a.Router())
	defer server.Close()

	resp, err := http.Post(server.URL+"/recognize-intent", "application/json", strings.NewReader(`{"text":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, "missing credentials")
}
