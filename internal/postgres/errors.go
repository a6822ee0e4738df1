package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// mapError converts pgx/pgconn errors to core errors.
// context.DeadlineExceeded and context.Canceled pass through.
func mapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %v: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
		return fmt.Errorf("%s %v: %w", entity, id, core.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %v: %w: %s", entity, id, core.ErrDuplicateKey, pgErr.Detail)
		case "23503": // foreign_key_violation
			return core.ValidationErrors{{Field: pgErr.ColumnName, Message: "violates foreign key: " + detail(pgErr)}}
		case "23502": // not_null_violation
			return core.ValidationErrors{{Field: pgErr.ColumnName, Message: "required field is empty (not-null constraint)"}}
		case "23514": // check_violation
			return core.ValidationErrors{{Field: pgErr.ColumnName, Message: "violates check constraint " + pgErr.ConstraintName}}
		case "22001": // string_data_right_truncation
			return core.ValidationErrors{{Field: pgErr.ColumnName, Message: "value too long"}}
		case "22003": // numeric_value_out_of_range
			return core.ValidationErrors{{Field: pgErr.ColumnName, Message: "invalid number: out of range"}}
		}
	}

	return core.StorageError(fmt.Sprintf("%s %v", entity, id), err)
}

func detail(e *pgconn.PgError) string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
