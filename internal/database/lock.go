package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

var ErrLockNotAcquired = errors.New("could not acquire migrations lock")

// Locker serializes migrator runs across processes. Lock and Unlock are
// always called with the same dedicated connection. A nil Locker means no locking.
type Locker interface {
	Lock(ctx context.Context, conn *sql.Conn) error
	Unlock(ctx context.Context, conn *sql.Conn) error
}
