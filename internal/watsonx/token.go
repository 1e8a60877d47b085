package watsonx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/lexiqai/inquiry-analyzer/internal/observability"
)

const (
	// APIKeyGrantType is the IAM grant type for API key exchange
	APIKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"

	// DefaultIAMURL is the IBM Cloud IAM token endpoint
	DefaultIAMURL = "https://iam.cloud.ibm.com/identity/token"

	defaultTokenLifetime = 3600 * time.Second
	expiryMargin         = 300 * time.Second
	iamTimeout           = 30 * time.Second
)

// TokenStatus describes the cached credential for health reporting
type TokenStatus struct {
	Cached    bool      `json:"cached"`
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// TokenSource exchanges an API key for bearer tokens and caches them until
// shortly before they expire. It is safe for concurrent use.
type TokenSource struct {
	apiKey     string
	iamURL     string
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger

	// refreshMu serialises exchanges; mu guards token and expiry
	refreshMu sync.Mutex
	mu        sync.RWMutex
	token     string
	expiry    time.Time
}

// NewTokenSource creates a token source for apiKey. An empty iamURL uses DefaultIAMURL.
func NewTokenSource(apiKey, iamURL string) *TokenSource {
	if iamURL == "" {
		iamURL = DefaultIAMURL
	}
	return &TokenSource{
		apiKey:     apiKey,
		iamURL:     iamURL,
		httpClient: &http.Client{Timeout: iamTimeout},
		now:        time.Now,
		logger:     observability.GetLogger().With().Str("component", "iam_token").Logger(),
	}
}

// Token returns a valid bearer token, exchanging the API key when the cache
// is empty, expired or forceRefresh is set. A failed exchange leaves the
// cache untouched.
func (s *TokenSource) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, ok := s.cached(); ok {
			return token, nil
		}
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited
	if !forceRefresh {
		if token, ok := s.cached(); ok {
			return token, nil
		}
	}

	token, lifetime, err := s.exchange(ctx)
	observability.RecordTokenExchange(err == nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error getting access token")
		return "", err
	}

	s.mu.Lock()
	s.token = token
	s.expiry = s.now().Add(lifetime - expiryMargin)
	s.mu.Unlock()

	s.logger.Info().Dur("expires_in", lifetime).Msg("New access token obtained")
	return token, nil
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token != "" && s.now().Before(s.expiry) {
		return s.token, true
	}
	return "", false
}

// Invalidate drops the cached token
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}

// Status reports whether a token is cached and still valid
func (s *TokenSource) Status() TokenStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TokenStatus{
		Cached:    s.token != "",
		Valid:     s.token != "" && s.now().Before(s.expiry),
		ExpiresAt: s.expiry,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

func (s *TokenSource) exchange(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{
		"grant_type": {APIKeyGrantType},
		"apikey":     {s.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &CredentialError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, &CredentialError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, &CredentialError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("IAM returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, &CredentialError{Status: resp.StatusCode, Err: fmt.Errorf("decode IAM response: %w", err)}
	}
	if tr.AccessToken == "" {
		return "", 0, &CredentialError{Status: resp.StatusCode, Err: fmt.Errorf("no access token in response")}
	}

	return tr.AccessToken, s.lifetime(tr), nil
}

// lifetime prefers expires_in, then the token's own exp claim, then one hour
func (s *TokenSource) lifetime(tr tokenResponse) time.Duration {
	if tr.ExpiresIn != nil && *tr.ExpiresIn > 0 {
		return time.Duration(*tr.ExpiresIn) * time.Second
	}
	if exp, ok := jwtExpiry(tr.AccessToken); ok {
		if remaining := exp.Sub(s.now()); remaining > 0 {
			return remaining
		}
	}
	return defaultTokenLifetime
}

// jwtExpiry reads the exp claim without verifying the signature. The token
// is only inspected for scheduling; the remote service validates it.
func jwtExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
