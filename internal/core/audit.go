package core

import (
	"context"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionDelete  AuditAction = "delete"
	ActionImport  AuditAction = "import"
	ActionReplace AuditAction = "replace"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           int64         `json:"id"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	TypeName     string        `json:"type"`
	Actor        string        `json:"actor,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	RecordID     string        `json:"recordId,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	BatchID      string        `json:"batchId,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditSink stores audit entries. LogAudit is called outside any transaction,
// after the mutation it describes has committed.
type AuditSink interface {
	LogAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// DetermineSeverity returns the appropriate severity for an action.
func DetermineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport, ActionDelete:
		return SeverityHigh
	case ActionReplace:
		return SeverityCritical
	case ActionCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// newAuditEntry fills the request metadata carried by ctx.
func newAuditEntry(ctx context.Context, action AuditAction, typ string) AuditEntry {
	return AuditEntry{
		Action:    action,
		Severity:  DetermineSeverity(action),
		TypeName:  typ,
		BatchID:   batchIDFromContext(ctx),
		Actor:     ActorFromContext(ctx),
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
}
