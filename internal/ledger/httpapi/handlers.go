package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/postgres"
)

// PeriodHandler serves the period-close surface: pre-flight validation,
// the close command itself, and status lookups.
type PeriodHandler struct {
	repo   periods.Repository
	engine *periods.CloseEngine
	tx     *postgres.TxManager
}

func NewPeriodHandler(repo periods.Repository, engine *periods.CloseEngine, tx *postgres.TxManager) *PeriodHandler {
	return &PeriodHandler{repo: repo, engine: engine, tx: tx}
}

// RegisterRoutes mounts the handler under router, which should already
// carry AuthMiddleware for the group it's attached to.
func (h *PeriodHandler) RegisterRoutes(router gin.IRouter) {
	periodsGroup := router.Group("/periods/:id")
	periodsGroup.POST("/validate-close", h.ValidateClose)
	periodsGroup.POST("/close", h.Close)
	periodsGroup.GET("/close-status", h.CloseStatus)
}

// ValidateClose runs the pre-close checks without sealing the period.
func (h *PeriodHandler) ValidateClose(c *gin.Context) {
	periodID := c.Param("id")

	period, err := h.repo.Get(c.Request.Context(), periodID)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	report, err := h.engine.ValidateCanClose(c.Request.Context(), period)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	respond(c, http.StatusOK, toValidationReportDTO(report))
}

// Close seals the period. Idempotent: re-closing an already-closed period
// returns its original close status with already_closed set, rather than
// an error.
func (h *PeriodHandler) Close(c *gin.Context) {
	periodID := c.Param("id")

	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	actor := actorID(c)
	if actor == "" {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "token is missing actor_id")
		return
	}

	status, err := postgres.ExecuteWithResult(c.Request.Context(), h.tx, func(txCtx context.Context) (*domain.CloseStatus, error) {
		return h.engine.Close(txCtx, periodID, actor, req.Reason, time.Now().UTC())
	})
	if err != nil {
		handleDomainError(c, err)
		return
	}

	respond(c, http.StatusOK, closeStatusDTO{
		PeriodID:      status.PeriodID,
		AlreadyClosed: status.AlreadyClosed,
		ClosedBy:      status.ClosedBy,
		CloseReason:   status.CloseReason,
		CloseHash:     status.CloseHash,
		ClosedAt:      rfc3339(status.ClosedAt),
	})
}

func rfc3339(t time.Time) *string {
	s := t.Format(time.RFC3339)
	return &s
}

// CloseStatus reports a period's current close lifecycle without running
// any validation.
func (h *PeriodHandler) CloseStatus(c *gin.Context) {
	periodID := c.Param("id")

	period, err := h.repo.Get(c.Request.Context(), periodID)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	respond(c, http.StatusOK, toCloseStatusDTO(period))
}

func toValidationReportDTO(r *domain.CloseValidationReport) validationReportDTO {
	issues := make([]closeIssueDTO, len(r.Issues))
	for i, issue := range r.Issues {
		issues[i] = closeIssueDTO{
			Severity: string(issue.Severity),
			Code:     issue.Code,
			Message:  issue.Message,
		}
	}
	return validationReportDTO{
		PeriodID: r.PeriodID,
		Blocking: r.Blocking(),
		Issues:   issues,
	}
}

func toCloseStatusDTO(p *domain.Period) closeStatusDTO {
	dto := closeStatusDTO{
		PeriodID:      p.ID,
		AlreadyClosed: p.IsClosed(),
		ClosedBy:      p.ClosedBy,
		CloseReason:   p.CloseReason,
		CloseHash:     p.CloseHash,
	}
	if p.ClosedAt != nil {
		ts := p.ClosedAt.Format(time.RFC3339)
		dto.ClosedAt = &ts
	}
	return dto
}
