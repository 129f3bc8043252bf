package domain

import "time"

// Period is an Accounting Period (C9, C13): period_start/period_end are
// inclusive dates, and the close-lifecycle fields are all nil until the
// period has been through the Close Engine.
type Period struct {
	ID               string
	TenantID         string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CloseRequestedAt *time.Time
	ClosedAt         *time.Time
	ClosedBy         string
	CloseReason      string
	CloseHash        string
}

// IsClosed reports whether the period has been sealed.
func (p *Period) IsClosed() bool {
	return p.ClosedAt != nil
}

// Contains reports whether date falls within the period's inclusive bounds.
func (p *Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.PeriodStart) && !d.After(p.PeriodEnd)
}

// CurrencySnapshot is one row of a period_summary_snapshot, computed per
// currency at close time and folded into the close hash.
type CurrencySnapshot struct {
	Currency          Currency
	JournalCount      int64
	LineCount         int64
	TotalDebitsMinor  int64
	TotalCreditsMinor int64
}

// CloseIssueSeverity tags a pre-close validation finding.
type CloseIssueSeverity string

const (
	IssueError   CloseIssueSeverity = "error"
	IssueWarning CloseIssueSeverity = "warning"
	IssueInfo    CloseIssueSeverity = "info"
)

// CloseIssue is one line of a pre-close validation report.
type CloseIssue struct {
	Severity CloseIssueSeverity
	Code     string
	Message  string
}

// CloseValidationReport is the output of validate_period_can_close.
type CloseValidationReport struct {
	PeriodID string
	Issues   []CloseIssue
}

// Blocking reports whether any issue in the report has error severity.
func (r *CloseValidationReport) Blocking() bool {
	for _, issue := range r.Issues {
		if issue.Severity == IssueError {
			return true
		}
	}
	return false
}

// CloseStatus is the idempotent response shape for close_period and
// GET /periods/{id}/close-status.
type CloseStatus struct {
	PeriodID    string
	ClosedAt    time.Time
	ClosedBy    string
	CloseReason string
	CloseHash   string
	// AlreadyClosed is true when the call observed a period closed by a
	// prior invocation rather than closing it itself.
	AlreadyClosed bool
}
