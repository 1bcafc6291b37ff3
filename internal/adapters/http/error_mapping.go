package httpadapter

import (
	"net/http"

	"github.com/akarpov/visearch/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case domain.IsKind(err, domain.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidImage):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrProviderRejected):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrProviderTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrProviderUnavailable),
		domain.IsKind(err, domain.ErrProviderMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessages are the only texts a client ever sees for a failure.
// Raw error chains (which may carry provider response bodies) stay in
// the logs.
var errorMessages = map[string]string{
	"unsupported_type":     "unsupported image type; expected JPEG or PNG",
	"too_large":            "image exceeds the maximum allowed size",
	"invalid_image":        "image could not be decoded",
	"provider_unavailable": "the image provider is currently unavailable",
	"provider_rejected":    "the image provider rejected the request",
	"provider_malformed":   "the image provider returned an unusable response",
	"provider_timeout":     "the image provider did not respond in time",
	"dimension_mismatch":   "embeddings are not comparable",
	"not_found":            "image not found",
	"storage_failure":      "the image could not be stored or read",
	"internal":             "internal error",
}

func classifiedMessage(kind string) string {
	if msg, ok := errorMessages[kind]; ok {
		return msg
	}
	return errorMessages["internal"]
}
