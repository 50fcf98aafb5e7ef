package cli

import (
	"database/sql"
	"log"
	"os"
	"strings"

	"github.com/denismitr/strata"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	mysqlScheme    = "mysql://"
	sqliteScheme   = "sqlite://"
	postgresScheme = "postgres://"
	postgresAlias  = "postgresql://"
)

type (
	migratorFactory    func(cfg Config, opts ...strata.OptionFunc) (*strata.Migrator, strata.CloserFunc, error)
	migratorFactoryMap map[string]migratorFactory
)

var factories = migratorFactoryMap{
	"mysql":    createMySQLMigrator,
	"sqlite":   createSqliteMigrator,
	"postgres": createPostgresMigrator,
}

func createMigrator(cfg Config, opts ...strata.OptionFunc) (*strata.Migrator, strata.CloserFunc, error) {
	driver, err := driverOf(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	factory, ok := factories[driver]
	if !ok {
		return nil, nil, errors.Errorf("could not find factory for driver [%s]", driver)
	}

	return factory(cfg, opts...)
}

func driverOf(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, mysqlScheme):
		return "mysql", nil
	case strings.HasPrefix(databaseURL, sqliteScheme):
		return "sqlite", nil
	case strings.HasPrefix(databaseURL, postgresScheme), strings.HasPrefix(databaseURL, postgresAlias):
		return "postgres", nil
	default:
		return "", errors.Errorf("unknown database driver [%s]", databaseURL)
	}
}

// mysqlDSN strips the scheme and forces parseTime so timestamps come back as time values.
func mysqlDSN(databaseURL string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(strings.TrimPrefix(databaseURL, mysqlScheme))
	if err != nil {
		return "", errors.Wrap(err, "invalid mysql dsn")
	}

	dsnCfg.ParseTime = true

	return dsnCfg.FormatDSN(), nil
}

func commonOptions(cfg Config) []strata.OptionFunc {
	folder := cfg.MigrationsFolder
	if folder == "" {
		folder = "./migrations"
	}

	var lg strata.OptionFunc
	if cfg.Color {
		lg = strata.UseColorLogger(log.New(os.Stderr, "", 0), false, false)
	} else {
		lg = strata.UseLogger(log.New(os.Stderr, "", 0), false, false)
	}

	return []strata.OptionFunc{lg, strata.UseLocalFolderSource(folder)}
}

func createMySQLMigrator(cfg Config, opts ...strata.OptionFunc) (*strata.Migrator, strata.CloserFunc, error) {
	dsn, err := mysqlDSN(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}

	var mysqlOpts []strata.MySQLOptionFunc
	if cfg.MigrationsTable != "" {
		mysqlOpts = append(mysqlOpts, strata.WithMySQLMigrationTable(cfg.MigrationsTable))
	}

	opts = append(append(commonOptions(cfg), strata.UseMySQL(db, mysqlOpts...)), opts...)

	return strata.NewMigrator(opts...)
}

func createSqliteMigrator(cfg Config, opts ...strata.OptionFunc) (*strata.Migrator, strata.CloserFunc, error) {
	db, err := sql.Open(strata.SqliteDriverName, strings.TrimPrefix(cfg.DatabaseURL, sqliteScheme))
	if err != nil {
		return nil, nil, err
	}

	db.SetMaxOpenConns(1)

	var sqliteOpts []strata.SqliteOptionFunc
	if cfg.MigrationsTable != "" {
		sqliteOpts = append(sqliteOpts, strata.WithSqliteMigrationTable(cfg.MigrationsTable))
	}

	opts = append(append(commonOptions(cfg), strata.UseSqlite(db, sqliteOpts...)), opts...)

	return strata.NewMigrator(opts...)
}

func createPostgresMigrator(cfg Config, opts ...strata.OptionFunc) (*strata.Migrator, strata.CloserFunc, error) {
	db, err := sql.Open(strata.PostgresDriverName, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	var pgOpts []strata.PostgresOptionFunc
	if cfg.MigrationsTable != "" {
		pgOpts = append(pgOpts, strata.WithPostgresMigrationTable(cfg.MigrationsTable))
	}

	opts = append(append(commonOptions(cfg), strata.UsePostgres(db, pgOpts...)), opts...)

	return strata.NewMigrator(opts...)
}
