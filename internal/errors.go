package internal

import (
	"errors"
	"fmt"
)

// Failure classes returned by the pipeline stages. Callers match them with errors.Is
var (
	ErrNotConfigured      = errors.New("not configured")
	ErrValidation         = errors.New("invalid input")
	ErrFileNotFound       = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file too large")
	ErrTransport          = errors.New("transport error")
	ErrTransientExhausted = errors.New("retries exhausted on transient error")
	ErrPermanentAPI       = errors.New("permanent API error")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrDownload           = errors.New("download failed")
	ErrConversion         = errors.New("conversion failed")
	ErrMetadata           = errors.New("metadata unavailable")
	ErrNoRendition        = errors.New("no usable rendition")
	ErrToolNotFound       = errors.New("tool not found")
	ErrLedger             = errors.New("cost ledger")
)

// APIError is a non-200 response from the speech-to-text service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether the status is worth retrying
func (e *APIError) Transient() bool {
	return isTransientStatus(e.StatusCode)
}

func isTransientStatus(code int) bool {
	switch code {
	case 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// wrapErr tags err with a failure class and a short description
func wrapErr(marker error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", marker, msg)
	}
	return fmt.Errorf("%w: %s: %w", marker, msg, err)
}
