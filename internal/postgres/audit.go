package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// AuditRepo stores audit entries in the audit_log table. It is append-only.
type AuditRepo struct {
	db DB
}

// NewAuditRepo creates an audit repository.
func NewAuditRepo(db DB) *AuditRepo {
	return &AuditRepo{db: db}
}

type auditRow struct {
	ID           int64       `db:"id"`
	Action       string      `db:"action"`
	Severity     string      `db:"severity"`
	RecordType   string      `db:"record_type"`
	Actor        pgtype.Text `db:"actor"`
	IPAddress    pgtype.Text `db:"ip_address"`
	UserAgent    pgtype.Text `db:"user_agent"`
	RecordID     pgtype.Text `db:"record_id"`
	RowsAffected pgtype.Int4 `db:"rows_affected"`
	BatchID      pgtype.UUID `db:"batch_id"`
	Detail       pgtype.Text `db:"detail"`
	CreatedAt    time.Time   `db:"created_at"`
}

// LogAudit inserts e. It runs on the pool, not on any transaction in ctx.
func (r *AuditRepo) LogAudit(ctx context.Context, e core.AuditEntry) error {
	var batchID pgtype.UUID
	if id, err := uuid.Parse(e.BatchID); err == nil {
		batchID = pgtype.UUID{Bytes: id, Valid: true}
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := psql.Insert("audit_log").
		Columns("action", "severity", "record_type", "actor", "ip_address", "user_agent",
			"record_id", "rows_affected", "batch_id", "detail", "created_at").
		Values(string(e.Action), string(e.Severity), e.TypeName, toPgText(e.Actor), toPgText(e.IPAddress),
			toPgText(e.UserAgent), toPgText(e.RecordID), toPgInt4(e.RowsAffected), batchID, toPgText(e.Detail), createdAt).
		ToSql()
	if err != nil {
		return core.StorageError("build audit insert", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return mapError(err, "audit_log", e.Action)
	}
	return nil
}

// ListAudit returns up to limit entries, newest first.
func (r *AuditRepo) ListAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	b := psql.Select("id", "action", "severity", "record_type", "actor", "ip_address", "user_agent",
		"record_id", "rows_affected", "batch_id", "detail", "created_at").
		From("audit_log").
		OrderBy("id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, core.StorageError("build audit select", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, mapError(err, "audit_log", "list")
	}

	entries := make([]core.AuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = core.AuditEntry{
			ID:           row.ID,
			Action:       core.AuditAction(row.Action),
			Severity:     core.AuditSeverity(row.Severity),
			TypeName:     row.RecordType,
			Actor:        row.Actor.String,
			IPAddress:    row.IPAddress.String,
			UserAgent:    row.UserAgent.String,
			RecordID:     row.RecordID.String,
			RowsAffected: int(row.RowsAffected.Int32),
			Detail:       row.Detail.String,
			CreatedAt:    row.CreatedAt.UTC(),
		}
		if row.BatchID.Valid {
			entries[i].BatchID = uuid.UUID(row.BatchID.Bytes).String()
		}
	}
	return entries, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func toPgInt4(n int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(n), Valid: n != 0}
}
