package watsonx

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialAcquisition is matched when an access token could not be obtained
	ErrCredentialAcquisition = errors.New("failed to obtain access token")

	// ErrRemoteUnavailable is matched when the remote service stayed unreachable after all retries
	ErrRemoteUnavailable = errors.New("remote service unavailable")
)

// CredentialError reports a failed API key exchange
type CredentialError struct {
	Status int // HTTP status of the IAM response, 0 for transport failures
	Err    error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCredentialAcquisition, e.Err)
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrCredentialAcquisition
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// APIError is a non-success response from the chat endpoint. It is never retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("watsonx API error (status %d): %s", e.Status, e.Body)
}

// UnavailableError reports that every attempt failed at the transport level
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("failed to connect to watsonx API after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
