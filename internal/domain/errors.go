package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound             = errors.New("domain: not found")
	ErrConflict             = errors.New("domain: conflict")
	ErrConcurrencyExhausted = errors.New("domain: concurrent append retries exhausted")
)
