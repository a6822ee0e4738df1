package core

// importer.go runs tabular import batches.
//
// A batch runs in one transaction. Every row runs in its own savepoint, so a
// bad row is rolled back and reported while the rest of the batch commits.
// Replace mode deletes the existing rows first inside the same transaction;
// if that delete fails nothing is imported.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockdash/internal/logging"
	"github.com/JonMunkholm/stockdash/internal/tabular"
)

// PreprocessFunc rewrites a raw row before it is coerced. It runs inside the
// row's savepoint, so any records it writes roll back with the row.
type PreprocessFunc func(ctx context.Context, rt *RecordType, row RawRow) (RawRow, error)

// ImportOption configures one import batch.
type ImportOption func(*importConfig)

type importConfig struct {
	preprocess   PreprocessFunc
	source       string
	decimalComma bool
}

// WithPreprocess transforms each row before coercion.
func WithPreprocess(fn PreprocessFunc) ImportOption {
	return func(c *importConfig) { c.preprocess = fn }
}

// WithSource names the batch origin (usually the file name) in the audit log.
func WithSource(name string) ImportOption {
	return func(c *importConfig) { c.source = name }
}

// WithDecimalComma reads decimal cells with a comma as the decimal point
// ("12,5", "1.234,56"). Use it for files whose cells are ';'-delimited.
func WithDecimalComma(on bool) ImportOption {
	return func(c *importConfig) { c.decimalComma = on }
}

// TableOptions returns the options implied by how t was read.
func TableOptions(t *tabular.Table) []ImportOption {
	return []ImportOption{WithDecimalComma(t.DecimalComma())}
}

// RowsFromTable converts a parsed file into raw rows keyed by header.
func RowsFromTable(t *tabular.Table) []RawRow {
	recs := t.Records()
	rows := make([]RawRow, len(recs))
	for i, r := range recs {
		rows[i] = RawRow(r)
	}
	return rows
}

// Preflight checks an import file against typeName before any row runs.
func (m *Mutator) Preflight(typeName string, header []string, rows []RawRow, mode ImportMode) (Preflight, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return Preflight{}, err
	}
	if mode, err = ParseImportMode(string(mode)); err != nil {
		return Preflight{}, err
	}
	return ValidateImport(rt, header, rows, mode), nil
}

// rowOutcome says what a successful row did.
type rowOutcome int

const (
	rowCreated rowOutcome = iota
	rowUpdated
)

// ImportBatch imports rows into typeName under mode. Per-row failures are
// collected in the result; the returned error is reserved for failures of the
// whole batch (unknown type, failed replace delete, lost connection). As with
// Create, a non-nil result may come back with a *HookError.
func (m *Mutator) ImportBatch(ctx context.Context, typeName string, rows []RawRow, mode ImportMode, opts ...ImportOption) (*ImportResult, error) {
	rt, err := m.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeInsert
	}
	if _, err := ParseImportMode(string(mode)); err != nil {
		return nil, err
	}

	cfg := &importConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	result := &ImportResult{
		BatchID: uuid.NewString(),
		Type:    rt.Name,
		Mode:    mode,
		Total:   len(rows),
	}
	ctx = logging.ContextWith(ctx, "batch_id", result.BatchID)
	logger := logging.WithFields(ctx, "type", rt.Name, "mode", mode)
	logger.Info("import started", "rows", len(rows), "source", cfg.source)

	hooks := m.hooksFor(rt.Name)
	var (
		created []Record
		updated []Record
		removed DeleteEvent
		unknown = make(map[string]struct{})
	)

	pending := &pendingEffects{batchID: result.BatchID}
	err = m.tx.RunInTx(withPending(ctx, pending), func(ctx context.Context) error {
		if mode == ModeReplace {
			if hooks.OnDelete != nil {
				existing, err := m.store.List(ctx, rt, ListOptions{})
				if err != nil {
					return fmt.Errorf("replace %s: list existing: %w", rt.Name, err)
				}
				for _, rec := range existing {
					removed.IDs = append(removed.IDs, rt.ID(rec))
					removed.Records = append(removed.Records, rec)
				}
			}
			n, err := m.store.DeleteAll(ctx, rt)
			if err != nil {
				return fmt.Errorf("replace %s: delete existing: %w", rt.Name, err)
			}
			result.Deleted = n
		}

		for i, raw := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}

			var (
				rec     Record
				outcome rowOutcome
			)
			err := m.tx.RunInTx(ctx, func(ctx context.Context) error {
				var err error
				rec, outcome, err = m.importRow(ctx, rt, raw, mode, cfg, unknown)
				return err
			})
			if err != nil {
				pending.dropRow()
				if isContextErr(err) {
					return err
				}
				result.Failed++
				result.Errors = append(result.Errors, RowError{Row: i + 1, Message: err.Error()})
				continue
			}
			pending.keepRow()

			result.Succeeded++
			switch outcome {
			case rowCreated:
				result.Created++
				created = append(created, rec)
			case rowUpdated:
				result.Updated++
				updated = append(updated, rec)
			}
		}
		return nil
	})
	result.Duration = time.Since(start)
	if err != nil {
		logger.Error("import failed", "error", err, "duration", result.Duration)
		return nil, err
	}

	if len(unknown) > 0 {
		cols := make([]string, 0, len(unknown))
		for c := range unknown {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		result.Warnings = append(result.Warnings, "unknown columns ignored: "+strings.Join(cols, ", "))
	}

	logger.Info("import completed",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"duration", result.Duration,
	)

	action := ActionImport
	if mode == ModeReplace {
		action = ActionReplace
	}
	m.logAudit(ctx, rt, action, func(e *AuditEntry) {
		e.BatchID = result.BatchID
		e.RowsAffected = result.Succeeded
		e.Detail = fmt.Sprintf("mode=%s succeeded=%d failed=%d deleted=%d", mode, result.Succeeded, result.Failed, result.Deleted)
		if cfg.source != "" {
			e.Detail += " source=" + cfg.source
		}
	})

	hookErrs := pending.flush(ctx)
	if err := hooks.deleted(ctx, rt.Name, removed); err != nil {
		hookErrs = append(hookErrs, err)
	}
	for _, rec := range created {
		if err := hooks.created(ctx, rt.Name, rec); err != nil {
			hookErrs = append(hookErrs, err)
		}
	}
	for _, rec := range updated {
		if err := hooks.updated(ctx, rt.Name, rec); err != nil {
			hookErrs = append(hookErrs, err)
		}
	}
	return result, errors.Join(hookErrs...)
}

// importRow applies one row. It runs inside the row's savepoint.
func (m *Mutator) importRow(ctx context.Context, rt *RecordType, raw RawRow, mode ImportMode, cfg *importConfig, unknown map[string]struct{}) (Record, rowOutcome, error) {
	if cfg.preprocess != nil {
		var err error
		if raw, err = cfg.preprocess(ctx, rt, raw); err != nil {
			return nil, 0, err
		}
	}

	row := make(map[string]any, len(raw))
	for k, v := range raw {
		f, ok := rt.Field(k)
		if !ok {
			if k != "" {
				unknown[k] = struct{}{}
			}
			continue
		}
		// An empty cell leaves a non-nullable column untouched instead of
		// clearing it.
		if isBlank(v) && !f.Nullable {
			continue
		}
		if str, ok := v.(string); ok && cfg.decimalComma && f.Kind == KindDecimal {
			v = decimalCommaToPoint(str)
		}
		row[k] = v
	}

	pk := rt.PrimaryKey()
	switch mode {
	case ModeInsert, ModeReplace:
		rec, _, err := prepareCreate(rt, row)
		if err != nil {
			return nil, 0, err
		}
		stored, err := m.insert(ctx, rt, rec)
		return stored, rowCreated, err

	case ModeUpdate:
		id, ok := row[pk.Name]
		if !ok {
			return nil, 0, invalid(pk.Name, "", "required field is empty")
		}
		key, err := coerceID(rt, id)
		if err != nil {
			return nil, 0, err
		}
		changes, _, err := prepareUpdate(rt, row)
		if err != nil {
			return nil, 0, err
		}
		stored, err := m.update(ctx, rt, key, changes)
		return stored, rowUpdated, err

	default: // ModeUpsert
		existing, err := m.findExisting(ctx, rt, row)
		if err != nil {
			return nil, 0, err
		}
		if existing == nil {
			rec, _, err := prepareCreate(rt, row)
			if err != nil {
				return nil, 0, err
			}
			stored, err := m.insert(ctx, rt, rec)
			return stored, rowCreated, err
		}
		changes, _, err := prepareUpdate(rt, row)
		if err != nil {
			return nil, 0, err
		}
		stored, err := m.update(ctx, rt, rt.ID(existing), changes)
		return stored, rowUpdated, err
	}
}

// findExisting looks a row up by primary key, or by natural key when the row
// has no primary key. It returns nil when there is no match.
func (m *Mutator) findExisting(ctx context.Context, rt *RecordType, row map[string]any) (Record, error) {
	pk := rt.PrimaryKey()
	var (
		rec Record
		err error
	)
	if id, ok := row[pk.Name]; ok {
		key, cerr := coerceID(rt, id)
		if cerr != nil {
			return nil, cerr
		}
		rec, err = m.store.Get(ctx, rt, key)
	} else {
		if len(rt.NaturalKey) == 0 {
			return nil, nil
		}
		match := make(map[string]any, len(rt.NaturalKey))
		for _, name := range rt.NaturalKey {
			v, ok := row[name]
			if !ok {
				return nil, nil
			}
			match[name] = v
		}
		coerced, _, cerr := CoerceRecord(rt, match)
		if cerr != nil {
			return nil, cerr
		}
		for _, v := range coerced {
			if v == nil {
				return nil, nil
			}
		}
		rec, err = m.store.FindOne(ctx, rt, coerced)
	}
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && CleanCell(s) == ""
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
