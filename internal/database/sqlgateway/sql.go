package sqlgateway

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/database/sqlgateway/mysql"
	"github.com/denismitr/strata/internal/database/sqlgateway/postgres"
	"github.com/denismitr/strata/internal/database/sqlgateway/sqlite"
	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/migration"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type SQLGateway struct {
	db        *sqlx.DB
	connector *RetryingConnector
	txm       TxManager
	locker    database.Locker
	dialect   database.Dialect
	ledger    *Ledger
	inspector *Inspector
	lg        logger.Logger
	observers database.Observers
}

var _ database.Gateway = (*SQLGateway)(nil)

// NewMySQLGateway - creates a gateway that talks to MySQL through db.
// Runs are serialized with GET_LOCK unless options.NoLock is set.
func NewMySQLGateway(db *sqlx.DB, options mysql.Options, connectOptions *ConnectOptions) (*SQLGateway, error) {
	table, err := migrationsTable(options.CommonOptions)
	if err != nil {
		return nil, err
	}

	var locker database.Locker
	if !options.NoLock {
		lockKey := options.LockKey
		if lockKey == "" {
			lockKey = mysql.DefaultLockKey
		}

		lockFor := options.LockFor
		if lockFor == 0 {
			lockFor = mysql.DefaultLockSeconds
		}

		locker = mysql.NewLocker(lockKey, lockFor)
	}

	return newGateway(db, mysql.NewDialect(table, options.Charset), locker, connectOptions), nil
}

// NewPostgresGateway - creates a gateway for PostgreSQL guarded by a session advisory lock.
func NewPostgresGateway(db *sqlx.DB, options postgres.Options, connectOptions *ConnectOptions) (*SQLGateway, error) {
	table, err := migrationsTable(options.CommonOptions)
	if err != nil {
		return nil, err
	}

	var locker database.Locker
	if !options.NoLock {
		lockKey := options.LockKey
		if lockKey == "" {
			lockKey = postgres.DefaultLockKey
		}

		locker = postgres.NewLocker(lockKey)
	}

	return newGateway(db, postgres.NewDialect(table), locker, connectOptions), nil
}

// NewSqliteGateway - creates a gateway for SQLite, which has no advisory locks.
func NewSqliteGateway(db *sqlx.DB, options sqlite.Options, connectOptions *ConnectOptions) (*SQLGateway, error) {
	table, err := migrationsTable(options.CommonOptions)
	if err != nil {
		return nil, err
	}

	return newGateway(db, sqlite.NewDialect(table), nil, connectOptions), nil
}

func migrationsTable(options database.CommonOptions) (string, error) {
	table := options.MigrationsTable
	if table == "" {
		table = database.DefaultMigrationsTable
	}

	if err := database.ValidateTableName(table); err != nil {
		return "", err
	}

	return table, nil
}

func newGateway(db *sqlx.DB, dialect database.Dialect, locker database.Locker, connectOptions *ConnectOptions) *SQLGateway {
	lg := logger.Logger(&logger.NullLogger{})

	return &SQLGateway{
		db:        db,
		connector: MakeRetryingConnector(db, connectOptions),
		txm:       NewTxManager(db),
		locker:    locker,
		dialect:   dialect,
		ledger:    NewLedger(dialect, lg),
		inspector: NewInspector(dialect, db.DriverName(), lg),
		lg:        lg,
	}
}

func (g *SQLGateway) SetLogger(lg logger.Logger) {
	g.lg = lg
	g.ledger.lg = lg
	g.inspector.lg = lg
}

func (g *SQLGateway) Observe(o database.Observer) {
	g.observers = append(g.observers, o)
}

func (g *SQLGateway) Close() error {
	return g.db.Close()
}

// Migrate applies every pending migration as one new batch. A failing
// migration stops the run; the ones committed before it stay applied.
func (g *SQLGateway) Migrate(
	ctx context.Context,
	defs migration.Definitions,
	p database.Plan,
) (database.ProcessedList, error) {
	var migrated database.ProcessedList

	f := func(ctx context.Context) error {
		if err := g.ledger.Ensure(ctx, g.db); err != nil {
			return err
		}

		executed, err := g.ledger.RecordedIDs(ctx, g.db)
		if err != nil {
			return err
		}

		scheduled := database.ScheduleForMigration(defs, executed, p)
		if len(scheduled) == 0 {
			g.lg.Debugf("nothing to migrate")
			return nil
		}

		if err := g.verify(scheduled...); err != nil {
			return err
		}

		batch, err := g.ledger.NextBatch(ctx, g.db)
		if err != nil {
			return err
		}

		for i := range scheduled {
			processed, err := g.migrateOne(ctx, scheduled[i], batch)
			if err != nil {
				return err
			}

			migrated = append(migrated, processed)
		}

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationMigrate, f); err != nil {
		return migrated, err
	}

	return migrated, nil
}

// Rollback reverts the most recent batch, last applied first.
func (g *SQLGateway) Rollback(ctx context.Context, defs migration.Definitions) (database.ProcessedList, error) {
	var rolledBack database.ProcessedList

	f := func(ctx context.Context) error {
		if err := g.ledger.Ensure(ctx, g.db); err != nil {
			return err
		}

		batch, ok, err := g.ledger.MaxBatch(ctx, g.db)
		if err != nil {
			return err
		}

		if !ok {
			g.lg.Debugf("nothing to rollback")
			return nil
		}

		ids, err := g.ledger.IDsInBatch(ctx, g.db, batch)
		if err != nil {
			return err
		}

		steps, err := database.ScheduleForRollback(defs, batch, ids)
		if err != nil {
			return err
		}

		if err := g.verifySteps(steps); err != nil {
			return err
		}

		for i := range steps {
			processed, err := g.rollbackOne(ctx, database.OperationRollback, steps[i])
			if err != nil {
				return err
			}

			rolledBack = append(rolledBack, processed)
		}

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationRollback, f); err != nil {
		return rolledBack, err
	}

	return rolledBack, nil
}

// Reset reverts everything in the ledger, newest first, and keeps going
// when a revert fails. The ledger is cleared at the end in any case.
func (g *SQLGateway) Reset(ctx context.Context, defs migration.Definitions) (*database.ResetResult, error) {
	result := new(database.ResetResult)

	f := func(ctx context.Context) error {
		if err := g.ledger.Ensure(ctx, g.db); err != nil {
			return err
		}

		records, err := g.ledger.Records(ctx, g.db, database.ReadFilter{Sort: database.DESC})
		if err != nil {
			return err
		}

		steps, err := database.ScheduleForReset(defs, records)
		if err != nil {
			return err
		}

		if err := g.verifySteps(steps); err != nil {
			return err
		}

		for i := range steps {
			processed, err := g.rollbackOne(ctx, database.OperationReset, steps[i])
			if err != nil {
				g.lg.Error(err)
				result.Failed = append(result.Failed, database.Failure{
					ID:   steps[i].Definition.ID,
					Name: processed.Name,
					Err:  err,
				})
				continue
			}

			result.Reverted = append(result.Reverted, processed)
		}

		cleared, err := g.ledger.Truncate(ctx, g.db)
		if err != nil {
			return err
		}

		result.Cleared = cleared
		result.Message = fmt.Sprintf(
			"reset complete: %d reverted, %d failed, ledger cleared",
			len(result.Reverted), len(result.Failed),
		)

		return nil
	}

	if err := g.execUnderLock(ctx, database.OperationReset, f); err != nil {
		return result, err
	}

	return result, nil
}

// Status compares the catalog with the ledger. It never creates the
// ledger table and takes no lock. The ledger and catalog are read in one
// read-only transaction so they describe the same moment.
func (g *SQLGateway) Status(ctx context.Context, defs migration.Definitions) (*database.Report, error) {
	if err := g.connector.Connect(ctx); err != nil {
		return nil, err
	}

	report := &database.Report{States: make([]database.State, 0, len(defs))}

	err := g.txm.ReadOnly(ctx, func(ctx context.Context, tx Tx) error {
		var records []database.Record
		if g.inspector.TableExists(ctx, tx, g.ledger.Table()) {
			var err error
			records, err = g.ledger.Records(ctx, tx, database.ReadFilter{Sort: database.ASC})
			if err != nil {
				return err
			}
		}

		byID := make(map[string]database.Record, len(records))
		for i := range records {
			byID[records[i].Migration] = records[i]
		}

		schema := g.schema(tx)
		for i := range defs {
			m, err := defs[i].Instantiate(schema)
			if err != nil {
				return err
			}

			state := database.State{ID: defs[i].ID, Name: m.Name()}
			if r, ok := byID[defs[i].ID]; ok {
				state.Executed = true
				state.Batch = r.Batch
				state.ExecutedAt = r.ExecutedAt
			}

			report.States = append(report.States, state)
		}

		report.Orphaned = database.Orphans(defs, records)

		return nil
	}, Isolation(RepeatableRead))

	if err != nil {
		return nil, err
	}

	return report, nil
}

func (g *SQLGateway) ShowTables(ctx context.Context) ([]string, error) {
	var result []string
	if err := sqlx.SelectContext(ctx, g.db, &result, g.dialect.ShowTablesQuery()); err != nil {
		return nil, errors.Wrap(err, "could not list all tables")
	}

	return result, nil
}

func (g *SQLGateway) DropMigrationsTable(ctx context.Context) error {
	return g.ledger.Drop(ctx, g.db)
}

func (g *SQLGateway) migrateOne(ctx context.Context, d migration.Definition, batch uint) (database.Processed, error) {
	processed := database.Processed{ID: d.ID, Batch: batch}

	err := g.txm.ReadWrite(ctx, func(ctx context.Context, tx Tx) error {
		m, err := d.Instantiate(g.schema(tx))
		if err != nil {
			return err
		}

		processed.Name = m.Name()
		g.lg.Debugf("migrating: %s batch %d (%s)", d.ID, batch, processed.Name)

		if err := m.Up(ctx); err != nil {
			return err
		}

		return g.ledger.Append(ctx, tx, d.ID, batch)
	})

	if err != nil {
		migErr := &database.MigrationError{
			Operation: database.OperationMigrate,
			ID:        d.ID,
			Name:      processed.Name,
			Err:       err,
		}

		g.notify(database.OperationMigrate, processed, migErr)

		return processed, migErr
	}

	g.lg.Successf("migrated: %s batch %d (%s)", d.ID, batch, processed.Name)
	g.notify(database.OperationMigrate, processed, nil)

	return processed, nil
}

func (g *SQLGateway) rollbackOne(ctx context.Context, operation string, step database.Step) (database.Processed, error) {
	processed := database.Processed{ID: step.Definition.ID, Batch: step.Record.Batch}

	err := g.txm.ReadWrite(ctx, func(ctx context.Context, tx Tx) error {
		m, err := step.Definition.Instantiate(g.schema(tx))
		if err != nil {
			return err
		}

		processed.Name = m.Name()
		g.lg.Debugf("rolling back: %s batch %d (%s)", step.Definition.ID, step.Record.Batch, processed.Name)

		if err := m.Down(ctx); err != nil {
			return err
		}

		return g.ledger.Remove(ctx, tx, step.Definition.ID)
	})

	if err != nil {
		migErr := &database.MigrationError{
			Operation: operation,
			ID:        step.Definition.ID,
			Name:      processed.Name,
			Err:       err,
		}

		g.notify(operation, processed, migErr)

		return processed, migErr
	}

	g.lg.Successf("rolled back: %s batch %d (%s)", step.Definition.ID, step.Record.Batch, processed.Name)
	g.notify(operation, processed, nil)

	return processed, nil
}

func (g *SQLGateway) notify(operation string, p database.Processed, err error) {
	e := database.Event{
		Operation:   operation,
		MigrationID: p.ID,
		Name:        p.Name,
		Batch:       p.Batch,
		Outcome:     database.OutcomeSucceeded,
	}

	if err != nil {
		e.Outcome = database.OutcomeFailed
		e.Err = err
	}

	g.observers.Notify(e)
}

// verify instantiates every scheduled migration before any of them runs,
// so a broken definition aborts the call with nothing executed.
func (g *SQLGateway) verify(defs ...migration.Definition) error {
	schema := g.schema(g.db)
	for i := range defs {
		if _, err := defs[i].Instantiate(schema); err != nil {
			return errors.Wrapf(err, "migration [%s] could not be instantiated", defs[i].ID)
		}
	}

	return nil
}

func (g *SQLGateway) verifySteps(steps []database.Step) error {
	defs := make([]migration.Definition, 0, len(steps))
	for i := range steps {
		defs = append(defs, steps[i].Definition)
	}

	return g.verify(defs...)
}

func (g *SQLGateway) schema(ex sqlx.ExtContext) *migration.Schema {
	return migration.NewSchema(ex, g.inspector, g.lg)
}

func (g *SQLGateway) execUnderLock(ctx context.Context, operation string, f func(context.Context) error) (err error) {
	if err := g.connector.Connect(ctx); err != nil {
		return err
	}

	if g.locker == nil {
		return f(ctx)
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		return errors.Wrapf(err, "could not obtain a connection to lock [%s] operation", operation)
	}

	defer func() {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, sql.ErrConnDone) {
			g.lg.Error(closeErr)
		}
	}()

	if err := g.locker.Lock(ctx, conn); err != nil {
		return errors.Wrapf(err, "database lock for [%s] operation failed", operation)
	}

	defer func() {
		if unlockErr := g.locker.Unlock(context.Background(), conn); unlockErr != nil {
			if err == nil {
				err = unlockErr
				return
			}

			g.lg.Error(unlockErr)
		}
	}()

	return f(ctx)
}
