package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/lexiqai/inquiry-analyzer/internal/analysis"
	"github.com/lexiqai/inquiry-analyzer/internal/audio"
	"github.com/lexiqai/inquiry-analyzer/internal/config"
	"github.com/lexiqai/inquiry-analyzer/internal/transcription"
	"github.com/lexiqai/inquiry-analyzer/internal/watsonx"
)

// errBadRequest marks request validation failures
var errBadRequest = errors.New("bad request")

type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func (e *requestError) Is(target error) bool {
	return target == errBadRequest
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor maps a pipeline error to the HTTP status reported to the client
func statusFor(err error) int {
	var decodeErr *audio.DecodeError
	var apiErr *watsonx.APIError

	switch {
	case errors.Is(err, audio.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, analysis.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcription.ErrNoTranscriptionProduced),
		errors.Is(err, config.ErrMissingConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, watsonx.ErrCredentialAcquisition):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 600 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, watsonx.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
