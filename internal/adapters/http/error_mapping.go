package httpadapter

import (
	"errors"
	"net/http"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/messaging/whatsapp"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// webhookErrorText keeps the response bodies the gateway integration already expects.
func webhookErrorText(err error) string {
	switch {
	case errors.Is(err, whatsapp.ErrNoMessageData):
		return "No message data"
	case errors.Is(err, whatsapp.ErrMissingFields):
		return "Missing from/text"
	default:
		return "Invalid payload"
	}
}
