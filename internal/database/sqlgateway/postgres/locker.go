package postgres

import (
	"context"
	"database/sql"
	"hash/fnv"

	"github.com/denismitr/strata/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "strata_migrations"

// Locker holds a session level advisory lock for the duration of a run.
type Locker struct {
	lockKey string
	lockID  int64
}

var _ database.Locker = (*Locker)(nil)

func NewLocker(lockKey string) *Locker {
	return &Locker{lockKey: lockKey, lockID: hashLockKey(lockKey)}
}

func (l *Locker) Lock(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.lockID); err != nil {
		return errors.Wrapf(err, "could not obtain [%s] advisory lock %d", l.lockKey, l.lockID)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return errors.Wrapf(err, "could not release [%s] advisory lock %d", l.lockKey, l.lockID)
	}

	return nil
}

// advisory locks take a bigint, so the key is folded with FNV-1a
func hashLockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}
