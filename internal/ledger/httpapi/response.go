// Package httpapi exposes the service's HTTP surface: the period-close
// workflow (validating whether a period can close, closing it, and
// reporting its close status), a read-only account-status lookup, and
// health/readiness probes. Posting and reversal themselves are driven by
// the consumer runner, not HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// apiResponse is the envelope every handler in this package replies with,
// following the same success/error/request-id/timestamp shape the rest of
// the platform's HTTP surface uses.
type apiResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestID(c *gin.Context) string {
	if id, ok := c.Get("request_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, apiResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now().UTC(),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, apiResponse{
		Success:   false,
		Error:     &apiError{Code: code, Message: message},
		RequestID: requestID(c),
		Timestamp: time.Now().UTC(),
	})
}

// handleDomainError maps the ledger's error taxonomy onto HTTP status
// codes. Anything not recognized falls through to 500, same as the
// platform's other domain-error mapper.
func handleDomainError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
		return
	}

	var gerr *domain.GovernanceError
	if errors.As(err, &gerr) {
		status := http.StatusUnprocessableEntity
		if errors.Is(gerr.Reason, domain.ErrPeriodNotFound) || errors.Is(gerr.Reason, domain.ErrNoPeriodForDate) || errors.Is(gerr.Reason, domain.ErrAccountNotFound) {
			status = http.StatusNotFound
		}
		respondError(c, status, "GOVERNANCE_ERROR", gerr.Error())
		return
	}

	var rerr *domain.ReversalError
	if errors.As(err, &rerr) {
		respondError(c, http.StatusUnprocessableEntity, "REVERSAL_ERROR", rerr.Error())
		return
	}

	var herr *domain.HashMismatchError
	if errors.As(err, &herr) {
		respondError(c, http.StatusConflict, "HASH_MISMATCH", herr.Error())
		return
	}

	var dup *domain.DuplicateEvent
	if errors.As(err, &dup) {
		respondError(c, http.StatusConflict, "DUPLICATE_REQUEST", dup.Error())
		return
	}

	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}
