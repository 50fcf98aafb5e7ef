package mysql

import (
	"fmt"

	"github.com/denismitr/strata/internal/database"
)

const DefaultCharset = "utf8mb4"

type Options struct {
	database.CommonOptions
	Charset string
	LockKey string
	LockFor int
	NoLock  bool
}

type Dialect struct {
	database.BaseDialect
	charset string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable, charset string) *Dialect {
	if charset == "" {
		charset = DefaultCharset
	}

	return &Dialect{
		BaseDialect: database.BaseDialect{MigrationsTable: migrationsTable},
		charset:     charset,
	}
}

func (Dialect) Name() string {
	return "mysql"
}

func (d Dialect) InitQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			migration VARCHAR(191) NOT NULL,
			batch INT UNSIGNED NOT NULL,
			executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY %[1]s_migration_unique (migration)
		) ENGINE=InnoDB CHARACTER SET=%[2]s
	`

	return fmt.Sprintf(createSQL, d.MigrationsTable, d.charset)
}

func (Dialect) ShowTablesQuery() string {
	return "SHOW TABLES"
}

func (Dialect) TableExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (Dialect) ColumnExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?"
}

func (Dialect) IndexExistsQuery() string {
	return "SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?"
}
