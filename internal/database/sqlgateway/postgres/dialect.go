package postgres

import (
	"fmt"

	"github.com/denismitr/strata/internal/database"
)

type Options struct {
	database.CommonOptions
	LockKey string
	NoLock  bool
}

type Dialect struct {
	database.BaseDialect
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable string) *Dialect {
	return &Dialect{BaseDialect: database.BaseDialect{MigrationsTable: migrationsTable}}
}

func (Dialect) Name() string {
	return "postgres"
}

// FailedStatementAbortsTx is true: postgres refuses every statement after a
// failure until the transaction or a savepoint is rolled back.
func (Dialect) FailedStatementAbortsTx() bool {
	return true
}

func (d Dialect) InitQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			migration VARCHAR(255) NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`

	return fmt.Sprintf(createSQL, d.MigrationsTable)
}

func (Dialect) ShowTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name"
}

func (Dialect) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}

func (Dialect) ColumnExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? AND column_name = ?"
}

func (Dialect) IndexExistsQuery() string {
	return "SELECT COUNT(*) FROM pg_indexes WHERE schemaname = current_schema() AND tablename = ? AND indexname = ?"
}
