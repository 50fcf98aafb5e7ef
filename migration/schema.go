package migration

import (
	"context"
	"fmt"

	"github.com/denismitr/strata/internal/logger"
	"github.com/jmoiron/sqlx"
)

// Inspector answers questions about the current database schema.
// A failed catalog query must be reported as false, never as an error.
type Inspector interface {
	TableExists(ctx context.Context, q sqlx.QueryerContext, table string) bool
	ColumnExists(ctx context.Context, q sqlx.QueryerContext, table, column string) bool
	IndexExists(ctx context.Context, q sqlx.QueryerContext, table, index string) bool
}

// ExecError carries the failing statement along with the caller message.
type ExecError struct {
	Message   string
	Statement string
	Err       error
}

func (e *ExecError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("could not execute statement [%s]: %v", e.Statement, e.Err)
	}

	return fmt.Sprintf("%s: statement [%s]: %v", e.Message, e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func (e *ExecError) Cause() error {
	return e.Err
}

// Schema is the handle a migration works through. It is bound to the
// transaction the migration runs in.
type Schema struct {
	ex        sqlx.ExtContext
	inspector Inspector
	lg        logger.Logger
}

func NewSchema(ex sqlx.ExtContext, inspector Inspector, lg logger.Logger) *Schema {
	if lg == nil {
		lg = logger.NullLogger{}
	}

	return &Schema{ex: ex, inspector: inspector, lg: lg}
}

// Exec runs a single statement. The optional message is put in front of the
// failing statement in the returned *ExecError.
func (s *Schema) Exec(ctx context.Context, query string, message ...string) error {
	s.lg.SQL(query)

	if _, err := s.ex.ExecContext(ctx, query); err != nil {
		var msg string
		if len(message) > 0 {
			msg = message[0]
		}

		return &ExecError{Message: msg, Statement: query, Err: err}
	}

	return nil
}

// ExecArgs is Exec for statements with bind parameters written with ?
// placeholders, which are rebound for the active driver.
func (s *Schema) ExecArgs(ctx context.Context, query string, args ...interface{}) error {
	query = s.ex.Rebind(query)
	s.lg.SQL(query, args...)

	if _, err := s.ex.ExecContext(ctx, query, args...); err != nil {
		return &ExecError{Statement: query, Err: err}
	}

	return nil
}

// DB exposes the underlying transaction for data migrations.
func (s *Schema) DB() sqlx.ExtContext {
	return s.ex
}

func (s *Schema) DriverName() string {
	return s.ex.DriverName()
}

func (s *Schema) TableExists(ctx context.Context, table string) bool {
	if s.inspector == nil {
		return false
	}
	return s.inspector.TableExists(ctx, s.ex, table)
}

func (s *Schema) ColumnExists(ctx context.Context, table, column string) bool {
	if s.inspector == nil {
		return false
	}
	return s.inspector.ColumnExists(ctx, s.ex, table, column)
}

func (s *Schema) IndexExists(ctx context.Context, table, index string) bool {
	if s.inspector == nil {
		return false
	}
	return s.inspector.IndexExists(ctx, s.ex, table, index)
}
