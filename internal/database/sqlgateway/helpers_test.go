package sqlgateway

import (
	"context"
	"testing"
	"time"

	"github.com/denismitr/strata/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/strata/migration"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// tableMigration creates one table on Up and drops it on Down.
type tableMigration struct {
	s        *migration.Schema
	name     string
	table    string
	failUp   bool
	failDown bool
}

func (m *tableMigration) Name() string {
	return m.name
}

func (m *tableMigration) Up(ctx context.Context) error {
	if m.s.TableExists(ctx, m.table) {
		return nil
	}

	if err := m.s.Exec(ctx, "CREATE TABLE "+m.table+" (id INTEGER PRIMARY KEY)"); err != nil {
		return err
	}

	if m.failUp {
		return errBoom
	}

	return nil
}

func (m *tableMigration) Down(ctx context.Context) error {
	if m.failDown {
		return errBoom
	}

	return m.s.Exec(ctx, "DROP TABLE IF EXISTS "+m.table)
}

type unit struct {
	id       string
	name     string
	table    string
	failUp   bool
	failDown bool
}

func definitions(t *testing.T, units ...unit) migration.Definitions {
	t.Helper()

	var result migration.Definitions
	for _, u := range units {
		u := u
		d, err := migration.NewDefinition(u.id, func(s *migration.Schema) migration.Migration {
			return &tableMigration{s: s, name: u.name, table: u.table, failUp: u.failUp, failDown: u.failDown}
		})
		require.NoError(t, err)
		result = append(result, d)
	}

	return result
}

func testConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: 3,
		MaxTimeout:  5 * time.Second,
		RetryStep:   10 * time.Millisecond,
	}
}

func newSqliteDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db := sqlx.MustOpen("sqlite3", ":memory:")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func newTestGateway(t *testing.T) (*SQLGateway, *sqlx.DB) {
	t.Helper()

	db := newSqliteDB(t)
	g, err := NewSqliteGateway(db, sqlite.Options{}, testConnectOptions())
	require.NoError(t, err)

	return g, db
}
