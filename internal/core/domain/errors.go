package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType     = errors.New("unsupported image type")
	ErrTooLarge            = errors.New("image too large")
	ErrInvalidImage        = errors.New("invalid image")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrProviderMalformed   = errors.New("provider response malformed")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrNotFound            = errors.New("image not found")
	ErrStorage             = errors.New("storage failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindLabel reports the stable machine-readable label of an error's kind.
// Both HTTP error payloads and find-similar warnings are built from it, so
// raw provider detail never reaches a client.
func KindLabel(err error) string {
	switch {
	case IsKind(err, ErrUnsupportedType):
		return "unsupported_type"
	case IsKind(err, ErrTooLarge):
		return "too_large"
	case IsKind(err, ErrInvalidImage):
		return "invalid_image"
	case IsKind(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case IsKind(err, ErrProviderRejected):
		return "provider_rejected"
	case IsKind(err, ErrProviderMalformed):
		return "provider_malformed"
	case IsKind(err, ErrProviderTimeout):
		return "provider_timeout"
	case IsKind(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrStorage):
		return "storage_failure"
	default:
		return "internal"
	}
}
