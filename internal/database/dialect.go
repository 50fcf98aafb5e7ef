package database

import "fmt"

// Dialect provides the SQL for ledger bookkeeping and catalog inspection.
// Queries use ? placeholders and are rebound for the driver by the caller.
type Dialect interface {
	Name() string
	Table() string

	InitQuery() string
	DropQuery() string
	InsertQuery() string
	RemoveQuery() string
	TruncateQuery() string
	ReadQuery(f ReadFilter) (string, []interface{})
	MaxBatchQuery() string
	ShowTablesQuery() string

	TableExistsQuery() string
	ColumnExistsQuery() string
	IndexExistsQuery() string

	// FailedStatementAbortsTx reports whether one failed statement makes the
	// rest of the transaction unusable.
	FailedStatementAbortsTx() bool
}

// BaseDialect holds the ledger queries every supported database understands.
type BaseDialect struct {
	MigrationsTable string
}

func (b BaseDialect) Table() string {
	return b.MigrationsTable
}

func (b BaseDialect) FailedStatementAbortsTx() bool {
	return false
}

func (b BaseDialect) DropQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", b.MigrationsTable)
}

func (b BaseDialect) InsertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (migration, batch) VALUES (?, ?)", b.MigrationsTable)
}

func (b BaseDialect) RemoveQuery() string {
	return fmt.Sprintf("DELETE FROM %s WHERE migration = ?", b.MigrationsTable)
}

func (b BaseDialect) TruncateQuery() string {
	return fmt.Sprintf("DELETE FROM %s", b.MigrationsTable)
}

func (b BaseDialect) MaxBatchQuery() string {
	return fmt.Sprintf("SELECT MAX(batch) FROM %s", b.MigrationsTable)
}

func (b BaseDialect) ReadQuery(f ReadFilter) (string, []interface{}) {
	q := fmt.Sprintf("SELECT id, migration, batch, executed_at FROM %s", b.MigrationsTable)

	var args []interface{}
	if f.Batch != 0 {
		q += " WHERE batch = ?"
		args = append(args, f.Batch)
	}

	if f.Sort == DESC {
		q += " ORDER BY batch DESC, id DESC"
	} else {
		q += " ORDER BY id ASC"
	}

	return q, args
}
