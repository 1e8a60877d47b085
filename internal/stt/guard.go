package stt

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/resilience"
)

// guard protects a backend with a circuit breaker and retries transient failures
type guard struct {
	service string
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
}

func newGuard(service string, cfg *config.Config) *guard {
	breaker := resilience.NewCircuitBreaker(
		service,
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)
	breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
	})

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	if cfg.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	}

	return &guard{service: service, breaker: breaker, retry: retry}
}

// do runs fn through the breaker, retrying errors isTransient accepts
func (g *guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return resilience.Retry(ctx, func(ctx context.Context) error {
		err := g.breaker.Call(func() error {
			return fn(ctx)
		})
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(g.service)
		}
		return err
	}, g.retry, isTransient)
}

// isTransient reports whether a speech backend failure is worth another attempt
func isTransient(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status >= http.StatusInternalServerError || statusErr.Status == http.StatusTooManyRequests
	}
	return resilience.IsRetryableNetworkError(err)
}
