package httpapi

// closeRequest is the body of POST /periods/{id}/close.
type closeRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// closeIssueDTO mirrors domain.CloseIssue for the wire format.
type closeIssueDTO struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type validationReportDTO struct {
	PeriodID string          `json:"period_id"`
	Blocking bool            `json:"blocking"`
	Issues   []closeIssueDTO `json:"issues"`
}

type closeStatusDTO struct {
	PeriodID      string  `json:"period_id"`
	AlreadyClosed bool    `json:"already_closed"`
	ClosedAt      *string `json:"closed_at,omitempty"`
	ClosedBy      string  `json:"closed_by,omitempty"`
	CloseReason   string  `json:"close_reason,omitempty"`
	CloseHash     string  `json:"close_hash,omitempty"`
}
