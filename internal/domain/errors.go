package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed query parameters.
	ErrValidation = errors.New("invalid query parameters")
	// ErrRemoteQuery signals an exhausted remote query.
	ErrRemoteQuery = errors.New("remote query failed")
	// ErrUpstreamDegraded signals an optional capability failure. It never
	// crosses a component boundary; components log it and fall back.
	ErrUpstreamDegraded = errors.New("upstream capability degraded")
	// ErrLLMProviderError signals a language model provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// RemoteQueryError wraps ErrRemoteQuery with the attempt count and last cause.
type RemoteQueryError struct {
	Attempts int
	Err      error
}

func (e *RemoteQueryError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRemoteQuery.Error(), e.Attempts, e.Err)
}

func (e *RemoteQueryError) Unwrap() error { return ErrRemoteQuery }

// NewRemoteQueryError creates a remote query error.
func NewRemoteQueryError(attempts int, err error) error {
	return &RemoteQueryError{Attempts: attempts, Err: err}
}
