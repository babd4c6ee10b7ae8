package api

import (
	"errors"
	"net/http"

	"github.com/ignite/audience-segments/internal/ai"
	"github.com/ignite/audience-segments/internal/pkg/httputil"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/service/segment"
)

// respondSafeError logs the internal error and sends publicMsg instead of
// it. Database details, file paths and upstream bodies never reach clients.
func respondSafeError(w http.ResponseWriter, code int, internalErr error, publicMsg string) {
	if internalErr != nil {
		logger.Error("request failed", "status", code, "public", publicMsg, "error", internalErr)
	}
	httputil.Error(w, code, publicMsg)
}

// respondServiceError maps segment service errors onto HTTP responses.
func respondServiceError(w http.ResponseWriter, err error) {
	var verr *segment.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.Errors(w, http.StatusUnprocessableEntity, verr.Messages())
	case errors.Is(err, segment.ErrNotFound):
		httputil.NotFound(w, "Segment not found")
	case errors.Is(err, segment.ErrExportConfig):
		respondSafeError(w, http.StatusServiceUnavailable, err, "Segment export is not configured")
	default:
		respondSafeError(w, http.StatusInternalServerError, err, "An internal error occurred")
	}
}

// respondAIError maps generation failures onto statuses and user-actionable
// messages. The underlying cause is logged, never returned.
func respondAIError(w http.ResponseWriter, err error) {
	code := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, ai.ErrEmptyDescription):
		code = http.StatusBadRequest
	case errors.Is(err, ai.ErrUnparseable), errors.Is(err, ai.ErrInvalidResponse):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrRateLimited):
		code = http.StatusTooManyRequests
	}
	if code >= http.StatusInternalServerError {
		logger.Error("AI segment generation failed", "error", err)
	} else {
		logger.Warn("AI segment generation rejected", "status", code, "error", err)
	}
	httputil.Error(w, code, ai.UserMessage(err))
}
