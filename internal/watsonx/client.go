package watsonx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/inquiry-analyzer/internal/analysis"
	"github.com/lexiqai/inquiry-analyzer/internal/observability"
	"github.com/lexiqai/inquiry-analyzer/internal/resilience"
)

const (
	// DefaultChatURL is the watsonx.ai text chat endpoint
	DefaultChatURL = "https://us-south.ml.cloud.ibm.com/ml/v1/text/chat"

	// DefaultAPIVersion is sent as the version query parameter
	DefaultAPIVersion = "2023-05-29"

	// DefaultMaxRetries is the number of attempts after the first
	DefaultMaxRetries = 2

	chatTimeout           = 300 * time.Second
	defaultNetworkBackoff = time.Second
)

// Client calls the watsonx.ai chat endpoint, refreshing the bearer token on
// 401 and retrying transport failures
type Client struct {
	chatURL        string
	version        string
	projectID      string
	modelID        string
	maxRetries     int
	networkBackoff time.Duration
	tokens         *TokenSource
	httpClient     *http.Client
	logger         zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithChatURL overrides the chat endpoint
func WithChatURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.chatURL = u
		}
	}
}

// WithAPIVersion overrides the version query parameter
func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithMaxRetries sets the retry count used by Generate
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithNetworkBackoff sets the pause before retrying a transport failure
func WithNetworkBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.networkBackoff = d
	}
}

// WithHTTPClient replaces the HTTP client used for chat calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a chat client for the given project and model
func NewClient(tokens *TokenSource, projectID, modelID string, opts ...Option) *Client {
	c := &Client{
		chatURL:        DefaultChatURL,
		version:        DefaultAPIVersion,
		projectID:      projectID,
		modelID:        modelID,
		maxRetries:     DefaultMaxRetries,
		networkBackoff: defaultNetworkBackoff,
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: chatTimeout},
		logger:         observability.GetLogger().With().Str("component", "watsonx").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the credential cache used by the client
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// Call posts payload to the chat endpoint and returns the raw JSON body of
// the first successful response. Attempt 0 uses the cached token; every
// later attempt forces a fresh exchange.
func (c *Client) Call(ctx context.Context, payload interface{}, maxRetries int) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	endpoint, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		token, err := c.tokens.Token(ctx, attempt > 0)
		if err != nil {
			return nil, err
		}

		status, respBody, err := c.post(ctx, endpoint, token, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			observability.RecordRemoteCall("network_error")
			lastErr = err
			c.logger.Error().Err(err).Int("attempt", attempt+1).Msg("Request error")
			if attempt < maxRetries {
				if err := resilience.Sleep(ctx, c.networkBackoff); err != nil {
					return nil, err
				}
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			observability.RecordRemoteCall("success")
			if !json.Valid(respBody) {
				return nil, fmt.Errorf("watsonx returned invalid JSON (status %d)", status)
			}
			return respBody, nil

		case status == http.StatusUnauthorized && attempt < maxRetries:
			observability.RecordRemoteCall("unauthorized")
			c.logger.Warn().Int("attempt", attempt+1).Msg("Token expired, refreshing")
			c.tokens.Invalidate()
			continue

		default:
			observability.RecordRemoteCall("api_error")
			c.logger.Error().Int("status", status).Str("body", string(respBody)).Msg("API error response")
			return nil, &APIError{Status: status, Body: string(respBody)}
		}
	}

	return nil, &UnavailableError{Attempts: maxRetries + 1, Err: lastErr}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.chatURL)
	if err != nil {
		return "", fmt.Errorf("invalid chat URL %q: %w", c.chatURL, err)
	}
	q := u.Query()
	q.Set("version", c.version)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

type chatRequest struct {
	Messages   []analysis.Message  `json:"messages"`
	Parameters analysis.Parameters `json:"parameters"`
	ModelID    string              `json:"model_id"`
	ProjectID  string              `json:"project_id"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements analysis.ChatCompletion
func (c *Client) Generate(ctx context.Context, messages []analysis.Message, params analysis.Parameters) (string, error) {
	raw, err := c.Call(ctx, chatRequest{
		Messages:   messages,
		Parameters: params,
		ModelID:    c.modelID,
		ProjectID:  c.projectID,
	}, c.maxRetries)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
