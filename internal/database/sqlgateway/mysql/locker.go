package mysql

import (
	"context"
	"database/sql"

	"github.com/denismitr/strata/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "strata_migrations"
const DefaultLockSeconds = 3

type Locker struct {
	lockKey string
	lockFor int
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey string, lockFor int) *Locker {
	return &Locker{lockKey: lockKey, lockFor: lockFor}
}

func (l *Locker) Lock(ctx context.Context, conn *sql.Conn) error {
	var acquired sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockKey, l.lockFor).Scan(&acquired); err != nil {
		return errors.Wrapf(err, "could not obtain [%s] exclusive MySQL DB lock for [%d] seconds", l.lockKey, l.lockFor)
	}

	if !acquired.Valid || acquired.Int64 != 1 {
		return errors.Wrapf(database.ErrLockNotAcquired, "[%s] is held by another session for more than %d seconds", l.lockKey, l.lockFor)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%s] exclusive MySQL DB lock", l.lockKey)
	}

	return nil
}
