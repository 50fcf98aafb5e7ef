package strata

import (
	"database/sql"
	"time"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/database/sqlgateway"
	"github.com/denismitr/strata/internal/database/sqlgateway/sqlite"
	"github.com/jmoiron/sqlx"
)

const SqliteDriverName = "sqlite3"

type SqliteOptionFunc func(*sqlite.Options, *sqlgateway.ConnectOptions)

func UseSqlite(db *sql.DB, options ...SqliteOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		sqliteOpts := &sqlite.Options{
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(sqliteOpts, connectOpts)
		}

		gateway, err := sqlgateway.NewSqliteGateway(sqlx.NewDb(db, SqliteDriverName), *sqliteOpts, connectOpts)
		if err != nil {
			return err
		}

		m.gateway = gateway

		return nil
	}
}

func WithSqliteMigrationTable(migrationTable string) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		sqliteOpts.MigrationsTable = migrationTable
	}
}

func WithSqliteConnectionTimeout(timeout time.Duration) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}

func WithSqliteMaxConnectionAttempts(attempts int) SqliteOptionFunc {
	return func(sqliteOpts *sqlite.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxAttempts = attempts
	}
}
