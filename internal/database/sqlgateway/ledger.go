package sqlgateway

import (
	"context"
	"database/sql"
	"time"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type ledgerRow struct {
	ID         int64      `db:"id"`
	Migration  string     `db:"migration"`
	Batch      uint       `db:"batch"`
	ExecutedAt ledgerTime `db:"executed_at"`
}

// ledgerTime accepts executed_at as a time.Time or as the raw text MySQL
// sends when the DSN lacks parseTime=true. Text is read as UTC.
type ledgerTime struct {
	value time.Time
}

var ledgerTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339Nano,
}

func (lt *ledgerTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		lt.value = time.Time{}
		return nil
	case time.Time:
		lt.value = v
		return nil
	case []byte:
		return lt.parse(string(v))
	case string:
		return lt.parse(v)
	default:
		return errors.Errorf("unsupported executed_at value of type %T", src)
	}
}

func (lt *ledgerTime) parse(value string) error {
	for _, layout := range ledgerTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			lt.value = t
			return nil
		}
	}

	return errors.Errorf("could not parse executed_at value [%s]", value)
}

// Ledger reads and writes the migrations table. Every method takes the
// executor to run on, so bookkeeping can share the transaction of the
// migration it records.
type Ledger struct {
	dialect database.Dialect
	lg      logger.Logger
}

func NewLedger(dialect database.Dialect, lg logger.Logger) *Ledger {
	return &Ledger{dialect: dialect, lg: lg}
}

func (l *Ledger) Table() string {
	return l.dialect.Table()
}

func (l *Ledger) Ensure(ctx context.Context, ex sqlx.ExtContext) error {
	q := l.dialect.InitQuery()
	l.lg.SQL(q)

	if _, err := ex.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "could not create migrations table [%s]", l.dialect.Table())
	}

	return nil
}

func (l *Ledger) Drop(ctx context.Context, ex sqlx.ExtContext) error {
	q := l.dialect.DropQuery()
	l.lg.SQL(q)

	if _, err := ex.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "could not drop migrations table [%s]", l.dialect.Table())
	}

	return nil
}

func (l *Ledger) Records(ctx context.Context, ex sqlx.ExtContext, f database.ReadFilter) ([]database.Record, error) {
	q, args := l.dialect.ReadQuery(f)
	q = ex.Rebind(q)
	l.lg.SQL(q, args...)

	var rows []ledgerRow
	if err := sqlx.SelectContext(ctx, ex, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "could not read migrations ledger")
	}

	result := make([]database.Record, 0, len(rows))
	for i := range rows {
		result = append(result, database.Record{
			ID:         rows[i].ID,
			Migration:  rows[i].Migration,
			Batch:      rows[i].Batch,
			ExecutedAt: rows[i].ExecutedAt.value,
		})
	}

	return result, nil
}

func (l *Ledger) RecordedIDs(ctx context.Context, ex sqlx.ExtContext) ([]string, error) {
	records, err := l.Records(ctx, ex, database.ReadFilter{Sort: database.ASC})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for i := range records {
		ids = append(ids, records[i].Migration)
	}

	return ids, nil
}

// IDsInBatch returns the ids of one batch in the order they were applied.
func (l *Ledger) IDsInBatch(ctx context.Context, ex sqlx.ExtContext, batch uint) ([]string, error) {
	records, err := l.Records(ctx, ex, database.ReadFilter{Batch: batch, Sort: database.ASC})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for i := range records {
		ids = append(ids, records[i].Migration)
	}

	return ids, nil
}

// MaxBatch reports false when the ledger is empty.
func (l *Ledger) MaxBatch(ctx context.Context, ex sqlx.ExtContext) (uint, bool, error) {
	q := l.dialect.MaxBatchQuery()
	l.lg.SQL(q)

	var batch sql.NullInt64
	if err := sqlx.GetContext(ctx, ex, &batch, q); err != nil {
		return 0, false, errors.Wrap(err, "could not read the last batch")
	}

	if !batch.Valid {
		return 0, false, nil
	}

	return uint(batch.Int64), true, nil
}

func (l *Ledger) NextBatch(ctx context.Context, ex sqlx.ExtContext) (uint, error) {
	batch, ok, err := l.MaxBatch(ctx, ex)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 1, nil
	}

	return batch + 1, nil
}

func (l *Ledger) Append(ctx context.Context, ex sqlx.ExtContext, id string, batch uint) error {
	q := ex.Rebind(l.dialect.InsertQuery())
	l.lg.SQL(q, id, batch)

	if _, err := ex.ExecContext(ctx, q, id, batch); err != nil {
		return errors.Wrapf(err, "could not record migration [%s] in batch %d", id, batch)
	}

	return nil
}

func (l *Ledger) Remove(ctx context.Context, ex sqlx.ExtContext, id string) error {
	q := ex.Rebind(l.dialect.RemoveQuery())
	l.lg.SQL(q, id)

	res, err := ex.ExecContext(ctx, q, id)
	if err != nil {
		return errors.Wrapf(err, "could not remove migration [%s] from the ledger", id)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("migration [%s] is not recorded in the ledger", id)
	}

	return nil
}

// Truncate deletes every ledger row and returns how many there were.
func (l *Ledger) Truncate(ctx context.Context, ex sqlx.ExtContext) (int64, error) {
	q := l.dialect.TruncateQuery()
	l.lg.SQL(q)

	res, err := ex.ExecContext(ctx, q)
	if err != nil {
		return 0, errors.Wrapf(err, "could not clear migrations table [%s]", l.dialect.Table())
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return n, nil
}
