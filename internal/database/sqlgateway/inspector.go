package sqlgateway

import (
	"context"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const inspectSavepoint = "strata_inspect"

// Inspector runs catalog queries for the active dialect. A failing query
// is logged and reported as "does not exist".
type Inspector struct {
	dialect  database.Dialect
	bindType int
	lg       logger.Logger
}

var _ migration.Inspector = (*Inspector)(nil)

func NewInspector(dialect database.Dialect, driverName string, lg logger.Logger) *Inspector {
	return &Inspector{dialect: dialect, bindType: sqlx.BindType(driverName), lg: lg}
}

func (i *Inspector) TableExists(ctx context.Context, q sqlx.QueryerContext, table string) bool {
	return i.exists(ctx, q, i.dialect.TableExistsQuery(), table)
}

func (i *Inspector) ColumnExists(ctx context.Context, q sqlx.QueryerContext, table, column string) bool {
	return i.exists(ctx, q, i.dialect.ColumnExistsQuery(), table, column)
}

func (i *Inspector) IndexExists(ctx context.Context, q sqlx.QueryerContext, table, index string) bool {
	return i.exists(ctx, q, i.dialect.IndexExistsQuery(), table, index)
}

func (i *Inspector) exists(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) bool {
	query = sqlx.Rebind(i.bindType, query)
	i.lg.SQL(query, args...)

	var (
		count int
		err   error
	)

	if tx, ok := q.(*sqlx.Tx); ok && i.dialect.FailedStatementAbortsTx() {
		count, err = i.countInSavepoint(ctx, tx, query, args...)
	} else {
		err = sqlx.GetContext(ctx, q, &count, query, args...)
	}

	if err != nil {
		i.lg.Debugf("%s catalog query failed, treating %v as missing: %v", i.dialect.Name(), args, err)
		return false
	}

	return count > 0
}

// countInSavepoint keeps a failed catalog query from poisoning the
// migration's transaction.
func (i *Inspector) countInSavepoint(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int, error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+inspectSavepoint); err != nil {
		return 0, errors.Wrap(err, "could not set inspection savepoint")
	}

	var count int
	if err := sqlx.GetContext(ctx, tx, &count, query, args...); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+inspectSavepoint); rbErr != nil {
			i.lg.Error(errors.Wrap(rbErr, "could not roll back to inspection savepoint"))
		}

		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+inspectSavepoint); err != nil {
		return 0, errors.Wrap(err, "could not release inspection savepoint")
	}

	return count, nil
}
