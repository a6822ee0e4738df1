package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/stockdash/internal/core"
)

// psql builds statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store persists core records in tables named after their record types.
type Store struct {
	db DB
}

// NewStore creates a Store. Queries run on the transaction in ctx when there
// is one, otherwise on db.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) q(ctx context.Context) Querier {
	return QuerierFromCtx(ctx, s.db)
}

func (s *Store) Insert(ctx context.Context, rt *core.RecordType, rec core.Record) (core.Record, error) {
	cols := make([]string, 0, len(rec))
	vals := make([]any, 0, len(rec))
	for _, f := range rt.Fields {
		v, ok := rec[f.Name]
		if !ok {
			continue
		}
		arg, err := toArg(f, v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, quote(f.Name))
		vals = append(vals, arg)
	}

	var (
		query string
		args  []any
		err   error
	)
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", quote(rt.TableName()), returning(rt))
	} else {
		query, args, err = psql.Insert(quote(rt.TableName())).
			Columns(cols...).
			Values(vals...).
			Suffix("RETURNING " + returning(rt)).
			ToSql()
		if err != nil {
			return nil, core.StorageError("build insert", err)
		}
	}

	return s.getOne(ctx, rt, nil, query, args...)
}

func (s *Store) Update(ctx context.Context, rt *core.RecordType, id any, changes core.Record) (core.Record, error) {
	set := make(map[string]any, len(changes))
	for _, f := range rt.Fields {
		v, ok := changes[f.Name]
		if !ok || f.PrimaryKey {
			continue
		}
		arg, err := toArg(f, v)
		if err != nil {
			return nil, err
		}
		set[quote(f.Name)] = arg
	}
	if len(set) == 0 {
		return s.Get(ctx, rt, id)
	}

	query, args, err := psql.Update(quote(rt.TableName())).
		SetMap(set).
		Where(sq.Eq{quote(rt.PrimaryKey().Name): id}).
		Suffix("RETURNING " + returning(rt)).
		ToSql()
	if err != nil {
		return nil, core.StorageError("build update", err)
	}
	return s.getOne(ctx, rt, id, query, args...)
}

func (s *Store) Delete(ctx context.Context, rt *core.RecordType, id any) error {
	query, args, err := psql.Delete(quote(rt.TableName())).
		Where(sq.Eq{quote(rt.PrimaryKey().Name): id}).
		ToSql()
	if err != nil {
		return core.StorageError("build delete", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, rt.Name, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", rt.Name, id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, rt *core.RecordType) (int64, error) {
	query, args, err := psql.Delete(quote(rt.TableName())).ToSql()
	if err != nil {
		return 0, core.StorageError("build delete", err)
	}
	tag, err := s.q(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err, rt.Name, "*")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Get(ctx context.Context, rt *core.RecordType, id any) (core.Record, error) {
	query, args, err := selectFrom(rt).
		Where(sq.Eq{quote(rt.PrimaryKey().Name): id}).
		ToSql()
	if err != nil {
		return nil, core.StorageError("build select", err)
	}
	return s.getOne(ctx, rt, id, query, args...)
}

func (s *Store) FindOne(ctx context.Context, rt *core.RecordType, match core.Record) (core.Record, error) {
	recs, err := s.List(ctx, rt, core.ListOptions{Where: match, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s: %w", rt.Name, core.ErrNotFound)
	}
	return recs[0], nil
}

func (s *Store) List(ctx context.Context, rt *core.RecordType, opts core.ListOptions) ([]core.Record, error) {
	b := selectFrom(rt)
	if len(opts.Where) > 0 {
		eq := sq.Eq{}
		for _, f := range rt.Fields {
			v, ok := opts.Where[f.Name]
			if !ok {
				continue
			}
			arg, err := toArg(f, v)
			if err != nil {
				return nil, err
			}
			eq[quote(f.Name)] = arg
		}
		b = b.Where(eq)
	}
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		b = b.Offset(uint64(opts.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, core.StorageError("build select", err)
	}

	var rows []map[string]any
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, query, args...); err != nil {
		return nil, mapError(err, rt.Name, "list")
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(rt, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) getOne(ctx context.Context, rt *core.RecordType, id any, query string, args ...any) (core.Record, error) {
	var row map[string]any
	if err := pgxscan.Get(ctx, s.q(ctx), &row, query, args...); err != nil {
		return nil, mapError(err, rt.Name, id)
	}
	return fromRow(rt, row)
}

func selectFrom(rt *core.RecordType) sq.SelectBuilder {
	cols := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		cols[i] = quote(f.Name)
	}
	return psql.Select(cols...).
		From(quote(rt.TableName())).
		OrderBy(quote(rt.PrimaryKey().Name))
}

func returning(rt *core.RecordType) string {
	cols := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		cols[i] = quote(f.Name)
	}
	return strings.Join(cols, ", ")
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// toArg converts a record value to a query argument.
func toArg(f core.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case decimal.Decimal:
		var n pgtype.Numeric
		if err := n.Scan(x.String()); err != nil {
			return nil, core.ValidationErrors{{Field: f.Name, Value: x.String(), Message: "invalid number format"}}
		}
		return n, nil
	case json.RawMessage:
		return []byte(x), nil
	default:
		return v, nil
	}
}

// fromRow converts scanned driver values to the record's Go types.
func fromRow(rt *core.RecordType, row map[string]any) (core.Record, error) {
	rec := make(core.Record, len(rt.Fields))
	for _, f := range rt.Fields {
		v, err := fromDB(f, row[f.Name])
		if err != nil {
			return nil, core.StorageError(fmt.Sprintf("decode %s.%s", rt.Name, f.Name), err)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func fromDB(f core.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case core.KindInteger, core.KindForeignKey:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int:
			return int64(n), nil
		}
	case core.KindDecimal:
		switch n := v.(type) {
		case pgtype.Numeric:
			return numericToDecimal(n, f.Scale)
		case string:
			d, err := decimal.NewFromString(n)
			if err != nil {
				return nil, err
			}
			return core.Quantize(d, f.Scale), nil
		case float64:
			return core.Quantize(decimal.NewFromFloat(n), f.Scale), nil
		}
	case core.KindDate:
		if t, ok := v.(time.Time); ok {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	case core.KindDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC(), nil
		}
	case core.KindJSON:
		switch j := v.(type) {
		case []byte:
			return json.RawMessage(j), nil
		case string:
			return json.RawMessage(j), nil
		default:
			b, err := json.Marshal(j)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(b), nil
		}
	case core.KindString, core.KindEnum:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case core.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unexpected %T for %s field", v, f.Kind)
}

func numericToDecimal(n pgtype.Numeric, scale int) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Decimal{}, fmt.Errorf("null numeric")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Decimal{}, fmt.Errorf("numeric is not finite")
	}
	i := n.Int
	if i == nil {
		i = new(big.Int)
	}
	return core.Quantize(decimal.NewFromBigInt(i, n.Exp), scale), nil
}
