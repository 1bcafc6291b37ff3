package cohere

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/akarpov/visearch/internal/core/domain"
	"github.com/akarpov/visearch/internal/infrastructure/resilience"
)

// translateError folds transport-level failures into the typed provider
// error kinds. Already-classified errors pass through untouched.
func translateError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrProviderMalformed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrProviderTimeout, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
		case statusErr.StatusCode >= 500:
			return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
		default:
			return domain.WrapError(domain.ErrProviderRejected, operation, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.WrapError(domain.ErrProviderTimeout, operation, err)
		}
		return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
	}

	return domain.WrapError(domain.ErrProviderUnavailable, operation, err)
}

// ClassifyError is the resilience classifier for provider calls: only
// transient unavailability is worth paying for again. Timeouts are not
// retried (a retry repeats the full wait) but do count against the
// breaker, as do rejections the provider should not be seeing.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	switch {
	case domain.IsKind(err, domain.ErrProviderUnavailable):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case domain.IsKind(err, domain.ErrProviderTimeout):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	case domain.IsKind(err, domain.ErrProviderRejected),
		domain.IsKind(err, domain.ErrProviderMalformed):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
