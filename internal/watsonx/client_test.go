package watsonx

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/inquiry-analyzer/internal/analysis"
)

// chatServer replies with the statuses in order, then 200
type chatServer struct {
	*httptest.Server
	calls    int32
	statuses []int

	mu      sync.Mutex
	tokens  []string
	payload map[string]interface{}
}

func newChatServer(t *testing.T, statuses ...int) *chatServer {
	s := &chatServer{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&s.calls, 1))
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("version"))

		var payload map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		s.mu.Lock()
		s.tokens = append(s.tokens, r.Header.Get("Authorization"))
		s.payload = payload
		s.mu.Unlock()

		if n <= len(s.statuses) && s.statuses[n-1] != http.StatusOK {
			http.Error(w, `{"errors":[{"code":"failed"}]}`, s.statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"GST_REGISTRATION - registration query"}}]}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) count() int {
	return int(atomic.LoadInt32(&s.calls))
}

func (s *chatServer) seenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *chatServer) lastPayload() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

func newTestClient(iam *iamServer, chatURL string, opts ...Option) *Client {
	opts = append([]Option{WithChatURL(chatURL), WithNetworkBackoff(time.Millisecond)}, opts...)
	return NewClient(NewTokenSource("test-key", iam.URL), "project-1", "ibm/granite", opts...)
}

func TestClient_Success(t *testing.T) {
	iam := newIAMServer(t)
	chat := newChatServer(t)
	client := newTestClient(iam, chat.URL)

	raw, err := client.Call(context.Background(), map[string]string{"hello": "world"}, 2)
	require.NoError(t, err)

	assert.Contains(t, string(raw), "GST_REGISTRATION")
	assert.Equal(t, 1, chat.count())
	assert.Equal(t, 1, iam.count())
	assert.Equal(t, []string{"Bearer token-1"}, chat.seenTokens())
}

func TestClient_UnauthorizedThenSuccess(t *testing.T) {
	iam := newIAMServer(t)
	chat := newChatServer(t, http.StatusUnauthorized)
	client := newTestClient(iam, chat.URL)

	_, err := client.Call(context.Background(), map[string]string{}, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, chat.count())
	assert.Equal(t, 2, iam.count())
	assert.Equal(t, []string{"Bearer token-1", "Bearer token-2"}, chat.seenTokens())
}

func TestClient_UnauthorizedOnLastAttempt(t *testing.T) {
	iam := newIAMServer(t)
	chat := newChatServer(t, http.StatusUnauthorized, http.StatusUnauthorized, http.StatusUnauthorized)
	client := newTestClient(iam, chat.URL)

	_, err := client.Call(context.Background(), map[string]string{}, 2)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, 3, chat.count())
}

func TestClient_NonAuthErrorsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			iam := newIAMServer(t)
			chat := newChatServer(t, status)
			client := newTestClient(iam, chat.URL)

			_, err := client.Call(context.Background(), map[string]string{}, 2)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, status, apiErr.Status)
			assert.Contains(t, apiErr.Body, "failed")
			assert.Equal(t, 1, chat.count())
		})
	}
}

func TestClient_NetworkErrorsThenUnavailable(t *testing.T) {
	iam := newIAMServer(t)

	// A listener that is closed immediately gives a refused connection
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + ln.Addr().String() + "/ml/v1/text/chat"
	ln.Close()

	client := newTestClient(iam, deadURL)
	_, err = client.Call(context.Background(), map[string]string{}, 2)

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable), "expected UnavailableError, got %v", err)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Equal(t, 3, unavailable.Attempts)

	// Attempts after the first always force a token exchange
	assert.Equal(t, 3, iam.count())
}

func TestClient_CredentialFailureStopsCall(t *testing.T) {
	iam := newIAMServer(t)
	iam.failWith(http.StatusUnauthorized)
	chat := newChatServer(t)
	client := newTestClient(iam, chat.URL)

	_, err := client.Call(context.Background(), map[string]string{}, 2)

	assert.ErrorIs(t, err, ErrCredentialAcquisition)
	assert.Equal(t, 0, chat.count())
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	iam := newIAMServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + ln.Addr().String()
	ln.Close()

	client := newTestClient(iam, deadURL, WithNetworkBackoff(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Call(ctx, map[string]string{}, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Generate(t *testing.T) {
	iam := newIAMServer(t)
	chat := newChatServer(t)
	client := newTestClient(iam, chat.URL)

	reply, err := client.Generate(context.Background(), []analysis.Message{
		{Role: analysis.RoleSystem, Content: "classify"},
		{Role: analysis.RoleUser, Content: "register my company"},
	}, analysis.IntentParameters)
	require.NoError(t, err)

	assert.Equal(t, "GST_REGISTRATION - registration query", reply)
	payload := chat.lastPayload()
	assert.Equal(t, "project-1", payload["project_id"])
	assert.Equal(t, "ibm/granite", payload["model_id"])

	params, ok := payload["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "greedy", params["decoding_method"])
	assert.Equal(t, float64(100), params["max_new_tokens"])
	assert.Equal(t, 1.1, params["repetition_penalty"])

	messages, ok := payload["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestClient_ImplementsChatCompletion(t *testing.T) {
	var _ analysis.ChatCompletion = (*Client)(nil)
}
