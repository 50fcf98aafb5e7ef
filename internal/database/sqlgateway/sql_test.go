package sqlgateway

import (
	"context"
	"testing"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/database/sqlgateway/mysql"
	"github.com/denismitr/strata/internal/database/sqlgateway/postgres"
	"github.com/denismitr/strata/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/strata/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGateways(t *testing.T) {
	t.Run("sqlite default options", func(t *testing.T) {
		g, err := NewSqliteGateway(newSqliteDB(t), sqlite.Options{}, nil)
		require.NoError(t, err)

		assert.Equal(t, database.DefaultMigrationsTable, g.ledger.Table())
		assert.Nil(t, g.locker)
		assert.Equal(t, DefaultConnectionAttempts, g.connector.options.MaxAttempts)
	})

	t.Run("sqlite custom table", func(t *testing.T) {
		g, err := NewSqliteGateway(newSqliteDB(t), sqlite.Options{
			CommonOptions: database.CommonOptions{MigrationsTable: "schema_versions"},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, "schema_versions", g.ledger.Table())
	})

	t.Run("invalid table name is rejected", func(t *testing.T) {
		_, err := NewSqliteGateway(newSqliteDB(t), sqlite.Options{
			CommonOptions: database.CommonOptions{MigrationsTable: "drop table;"},
		}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, database.ErrInvalidTableName))
	})

	t.Run("mysql locks by default", func(t *testing.T) {
		db := sqlx.NewDb(newSqliteDB(t).DB, "mysql")
		g, err := NewMySQLGateway(db, mysql.Options{}, nil)
		require.NoError(t, err)

		assert.NotNil(t, g.locker)
		assert.Equal(t, "mysql", g.dialect.Name())
	})

	t.Run("mysql without lock", func(t *testing.T) {
		db := sqlx.NewDb(newSqliteDB(t).DB, "mysql")
		g, err := NewMySQLGateway(db, mysql.Options{NoLock: true}, nil)
		require.NoError(t, err)

		assert.Nil(t, g.locker)
	})

	t.Run("postgres", func(t *testing.T) {
		db := sqlx.NewDb(newSqliteDB(t).DB, "pgx")
		g, err := NewPostgresGateway(db, postgres.Options{LockKey: "app"}, nil)
		require.NoError(t, err)

		assert.NotNil(t, g.locker)
		assert.Equal(t, "postgres", g.dialect.Name())
		assert.Equal(t, sqlx.DOLLAR, g.inspector.bindType)
	})
}

func TestSQLGateway_Migrate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations as one batch", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_create_users", name: "Create Users", table: "users"},
			unit{id: "002_create_posts", name: "Create Posts", table: "posts"},
		)

		migrated, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Create Users", "Create Posts"}, migrated.Names())

		records, err := g.ledger.Records(ctx, db, database.ReadFilter{Sort: database.ASC})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, uint(1), records[0].Batch)
		assert.Equal(t, uint(1), records[1].Batch)

		again, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("separate calls get increasing batches", func(t *testing.T) {
		g, db := newTestGateway(t)
		first := definitions(t, unit{id: "001_create_users", name: "Create Users", table: "users"})

		_, err := g.Migrate(ctx, first, database.Plan{})
		require.NoError(t, err)

		second := definitions(t,
			unit{id: "001_create_users", name: "Create Users", table: "users"},
			unit{id: "002_create_posts", name: "Create Posts", table: "posts"},
		)

		migrated, err := g.Migrate(ctx, second, database.Plan{})
		require.NoError(t, err)
		require.Len(t, migrated, 1)
		assert.Equal(t, uint(2), migrated[0].Batch)

		ids, err := g.ledger.IDsInBatch(ctx, db, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"002_create_posts"}, ids)
	})

	t.Run("steps limit the number of migrations", func(t *testing.T) {
		g, _ := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
			unit{id: "003_c", name: "C", table: "c"},
		)

		migrated, err := g.Migrate(ctx, defs, database.Plan{Steps: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, migrated.Names())
	})

	t.Run("failure stops the run and keeps earlier migrations", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b", failUp: true},
			unit{id: "003_c", name: "C", table: "c"},
		)

		migrated, err := g.Migrate(ctx, defs, database.Plan{})
		require.Error(t, err)
		assert.Equal(t, []string{"A"}, migrated.Names())

		var migErr *database.MigrationError
		require.True(t, errors.As(err, &migErr))
		assert.Equal(t, "002_b", migErr.ID)
		assert.Equal(t, "B", migErr.Name)
		assert.True(t, errors.Is(err, errBoom))

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_a"}, ids)

		tables, err := g.ShowTables(ctx)
		require.NoError(t, err)
		assert.Contains(t, tables, "a")
		assert.NotContains(t, tables, "b")
		assert.NotContains(t, tables, "c")
	})

	t.Run("broken definition aborts before anything runs", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t, unit{id: "001_a", name: "A", table: "a"})
		broken, err := migration.NewDefinition("002_broken", func(s *migration.Schema) migration.Migration {
			return nil
		})
		require.NoError(t, err)
		defs = append(defs, broken)

		migrated, err := g.Migrate(ctx, defs, database.Plan{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, migration.ErrNilMigration))
		assert.Empty(t, migrated)

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("events are emitted per migration", func(t *testing.T) {
		g, _ := newTestGateway(t)
		var events []database.Event
		g.Observe(func(e database.Event) {
			events = append(events, e)
		})

		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b", failUp: true},
		)

		_, err := g.Migrate(ctx, defs, database.Plan{})
		require.Error(t, err)
		require.Len(t, events, 2)

		assert.Equal(t, database.OutcomeSucceeded, events[0].Outcome)
		assert.Equal(t, "001_a", events[0].MigrationID)
		assert.Equal(t, uint(1), events[0].Batch)
		assert.Equal(t, database.OutcomeFailed, events[1].Outcome)
		assert.Equal(t, "B", events[1].Name)
		assert.Error(t, events[1].Err)
	})
}

func TestSQLGateway_Rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to rollback", func(t *testing.T) {
		g, _ := newTestGateway(t)

		rolledBack, err := g.Rollback(ctx, definitions(t, unit{id: "001_a", name: "A", table: "a"}))
		require.NoError(t, err)
		assert.Empty(t, rolledBack)
	})

	t.Run("reverts only the last batch in reverse order", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
			unit{id: "003_c", name: "C", table: "c"},
		)

		_, err := g.Migrate(ctx, defs[:1], database.Plan{})
		require.NoError(t, err)
		_, err = g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		rolledBack, err := g.Rollback(ctx, defs)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "B"}, rolledBack.Names())

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_a"}, ids)

		tables, err := g.ShowTables(ctx)
		require.NoError(t, err)
		assert.Contains(t, tables, "a")
		assert.NotContains(t, tables, "b")
	})

	t.Run("failure stops the rollback", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a", failDown: true},
			unit{id: "002_b", name: "B", table: "b"},
			unit{id: "003_c", name: "C", table: "c"},
		)

		_, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		rolledBack, err := g.Rollback(ctx, defs)
		require.Error(t, err)
		assert.Equal(t, []string{"C", "B"}, rolledBack.Names())

		var migErr *database.MigrationError
		require.True(t, errors.As(err, &migErr))
		assert.Equal(t, database.OperationRollback, migErr.Operation)
		assert.Equal(t, "001_a", migErr.ID)

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_a"}, ids)
	})

	t.Run("recorded migration missing from catalog", func(t *testing.T) {
		g, _ := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
		)

		_, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		rolledBack, err := g.Rollback(ctx, defs[:1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, migration.ErrMigrationNotFound))
		assert.Empty(t, rolledBack)
	})
}

func TestSQLGateway_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts everything newest first", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
		)

		_, err := g.Migrate(ctx, defs[:1], database.Plan{})
		require.NoError(t, err)
		_, err = g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		result, err := g.Reset(ctx, defs)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, result.Reverted.Names())
		assert.Empty(t, result.Failed)
		assert.Equal(t, int64(0), result.Cleared)
		assert.NotEmpty(t, result.Message)

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("failed reverts do not stop the reset and the ledger is cleared", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b", failDown: true},
			unit{id: "003_c", name: "C", table: "c"},
		)

		_, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		result, err := g.Reset(ctx, defs)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A"}, result.Reverted.Names())
		require.Len(t, result.Failed, 1)
		assert.Equal(t, "002_b", result.Failed[0].ID)
		assert.Equal(t, "B", result.Failed[0].Name)
		assert.True(t, errors.Is(result.Failed[0].Err, errBoom))
		assert.Equal(t, int64(1), result.Cleared)

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("missing definition aborts the reset", func(t *testing.T) {
		g, db := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
		)

		_, err := g.Migrate(ctx, defs, database.Plan{})
		require.NoError(t, err)

		result, err := g.Reset(ctx, defs[1:])
		require.Error(t, err)
		assert.True(t, errors.Is(err, migration.ErrMigrationNotFound))
		assert.Empty(t, result.Reverted)

		ids, err := g.ledger.RecordedIDs(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_a", "002_b"}, ids)
	})
}

func TestSQLGateway_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("before any migration", func(t *testing.T) {
		g, _ := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
		)

		report, err := g.Status(ctx, defs)
		require.NoError(t, err)
		require.Len(t, report.States, 2)
		assert.Equal(t, "001_a", report.States[0].ID)
		assert.Equal(t, "A", report.States[0].Name)
		assert.False(t, report.States[0].Executed)
		assert.False(t, report.States[1].Executed)
		assert.Equal(t, 2, report.Pending())

		tables, err := g.ShowTables(ctx)
		require.NoError(t, err)
		assert.NotContains(t, tables, database.DefaultMigrationsTable)
	})

	t.Run("reports executed and orphaned migrations", func(t *testing.T) {
		g, _ := newTestGateway(t)
		defs := definitions(t,
			unit{id: "001_a", name: "A", table: "a"},
			unit{id: "002_b", name: "B", table: "b"},
			unit{id: "003_c", name: "C", table: "c"},
		)

		_, err := g.Migrate(ctx, defs[:2], database.Plan{})
		require.NoError(t, err)

		report, err := g.Status(ctx, defs[1:])
		require.NoError(t, err)
		require.Len(t, report.States, 2)
		assert.True(t, report.States[0].Executed)
		assert.Equal(t, uint(1), report.States[0].Batch)
		assert.False(t, report.States[0].ExecutedAt.IsZero())
		assert.False(t, report.States[1].Executed)

		require.Len(t, report.Orphaned, 1)
		assert.Equal(t, "001_a", report.Orphaned[0].Migration)
	})
}

func TestSQLGateway_DropMigrationsTable(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGateway(t)

	_, err := g.Migrate(ctx, definitions(t, unit{id: "001_a", name: "A", table: "a"}), database.Plan{})
	require.NoError(t, err)

	require.NoError(t, g.DropMigrationsTable(ctx))

	tables, err := g.ShowTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tables)
}
