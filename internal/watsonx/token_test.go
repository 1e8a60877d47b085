package watsonx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iamServer issues token-1, token-2, ... and counts exchanges
type iamServer struct {
	*httptest.Server
	exchanges int32
	status    int32
	expiresIn interface{}
}

func newIAMServer(t *testing.T) *iamServer {
	return newIAMServerExpiring(t, 3600)
}

// newIAMServerExpiring sets expires_in in every response; nil omits it
func newIAMServerExpiring(t *testing.T, expiresIn interface{}) *iamServer {
	s := &iamServer{expiresIn: expiresIn, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.exchanges, 1)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, APIKeyGrantType, r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-key", r.PostForm.Get("apikey"))

		if status := int(atomic.LoadInt32(&s.status)); status != http.StatusOK {
			http.Error(w, `{"errorCode":"BXNIM0415E"}`, status)
			return
		}

		body := map[string]interface{}{"access_token": "token-" + string(rune('0'+n))}
		if s.expiresIn != nil {
			body["expires_in"] = s.expiresIn
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *iamServer) count() int {
	return int(atomic.LoadInt32(&s.exchanges))
}

func (s *iamServer) failWith(status int) {
	atomic.StoreInt32(&s.status, int32(status))
}

func TestTokenSource_CachesToken(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)

	first, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)
	second, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, "token-1", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, iam.count())
}

func TestTokenSource_ForceRefresh(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)

	_, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	token, err := tokens.Token(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, "token-2", token)
	assert.Equal(t, 2, iam.count())
}

func TestTokenSource_ExpiryMargin(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	_, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	status := tokens.Status()
	assert.True(t, status.Valid)
	assert.Equal(t, now.Add(3300*time.Second), status.ExpiresAt)

	// Inside the five-minute margin the cached token is no longer used
	now = now.Add(3300 * time.Second)
	token, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenSource_DefaultLifetime(t *testing.T) {
	iam := newIAMServerExpiring(t, nil)
	tokens := NewTokenSource("test-key", iam.URL)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	_, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, now.Add(3300*time.Second), tokens.Status().ExpiresAt)
}

func TestTokenSource_FailureLeavesCacheUntouched(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)

	_, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	iam.failWith(http.StatusBadRequest)
	_, err = tokens.Token(context.Background(), true)

	var credErr *CredentialError
	require.True(t, errors.As(err, &credErr), "expected CredentialError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, credErr.Status)
	assert.ErrorIs(t, err, ErrCredentialAcquisition)

	token, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
}

func TestTokenSource_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer server.Close()

	_, err := NewTokenSource("test-key", server.URL).Token(context.Background(), false)
	assert.ErrorIs(t, err, ErrCredentialAcquisition)
}

func TestTokenSource_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewTokenSource("test-key", url).Token(context.Background(), false)
	assert.ErrorIs(t, err, ErrCredentialAcquisition)
}

func TestTokenSource_Invalidate(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)

	_, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)

	tokens.Invalidate()
	assert.False(t, tokens.Status().Cached)

	token, err := tokens.Token(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

func TestTokenSource_ConcurrentCallersShareExchange(t *testing.T) {
	iam := newIAMServer(t)
	tokens := NewTokenSource("test-key", iam.URL)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := tokens.Token(context.Background(), false)
			assert.NoError(t, err)
			assert.Equal(t, "token-1", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, iam.count())
}

func TestJWTExpiry(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := jwtExpiry(signed)
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "expected %s, got %s", exp, got)

	_, ok = jwtExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestTokenSource_LifetimeFromJWT(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(20 * time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tokens := NewTokenSource("test-key", "")
	tokens.now = func() time.Time { return now }

	assert.Equal(t, 20*time.Minute, tokens.lifetime(tokenResponse{AccessToken: signed}))
	assert.Equal(t, defaultTokenLifetime, tokens.lifetime(tokenResponse{AccessToken: "opaque"}))
}
