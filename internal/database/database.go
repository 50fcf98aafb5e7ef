package database

import (
	"regexp"
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidTableName = errors.New("invalid migrations table name")

const (
	DefaultMigrationsTable = "migrations"

	OperationMigrate  = "migrate"
	OperationRollback = "rollback"
	OperationReset    = "reset"

	ASC  = "ASC"
	DESC = "DESC"
)

var tableNameRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type CommonOptions struct {
	MigrationsTable string
}

// Plan narrows a migrate call. Zero Steps means every pending migration.
type Plan struct {
	Steps int
}

// Record is a single ledger row.
type Record struct {
	ID         int64     `db:"id"`
	Migration  string    `db:"migration"`
	Batch      uint      `db:"batch"`
	ExecutedAt time.Time `db:"executed_at"`
}

type ReadFilter struct {
	Batch uint
	Sort  string
}

func ValidateTableName(name string) error {
	if !tableNameRegexp.MatchString(name) {
		return errors.Wrapf(ErrInvalidTableName, "[%s]", name)
	}
	return nil
}
