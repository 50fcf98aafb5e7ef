package sqlgateway

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrTxDeadlock = errors.New("transaction deadlock occurred")

// TxConfig - configures tx
type TxConfig struct {
	Iso      sql.IsolationLevel
	ReadOnly bool
}

type TxConfigFunc func(*TxConfig)

// ISO - isolation level type
type ISO int

const (
	Default ISO = iota
	Serializable
	RepeatableRead
	ReadCommitted
)

// Isolation tx config function
func Isolation(iso ISO) TxConfigFunc {
	return func(txCfg *TxConfig) {
		switch iso {
		case Default:
			txCfg.Iso = sql.LevelDefault
		case Serializable:
			txCfg.Iso = sql.LevelSerializable
		case RepeatableRead:
			txCfg.Iso = sql.LevelRepeatableRead
		case ReadCommitted:
			txCfg.Iso = sql.LevelReadCommitted
		}
	}
}

// Tx runs the statements of a callback inside its transaction.
type Tx interface {
	sqlx.ExtContext
}

type TxCallback func(context.Context, Tx) error

type TxManager interface {
	ReadOnly(context.Context, TxCallback, ...TxConfigFunc) error
	ReadWrite(context.Context, TxCallback, ...TxConfigFunc) error
}

type SqlxTxManager struct {
	db *sqlx.DB
}

var _ TxManager = (*SqlxTxManager)(nil)

func NewTxManager(db *sqlx.DB) *SqlxTxManager {
	return &SqlxTxManager{db: db}
}

func (txm *SqlxTxManager) ReadOnly(ctx context.Context, cb TxCallback, cfn ...TxConfigFunc) error {
	txCfg := TxConfig{
		Iso:      sql.LevelDefault,
		ReadOnly: true,
	}

	for _, fn := range cfn {
		fn(&txCfg)
	}

	return txm.isolate(ctx, cb, txCfg)
}

// ReadWrite runs cb in a transaction that is committed when cb succeeds and
// rolled back otherwise. The driver default isolation is used unless asked
// for, because several engines refuse DDL under stricter levels.
func (txm *SqlxTxManager) ReadWrite(ctx context.Context, cb TxCallback, cfn ...TxConfigFunc) error {
	txCfg := TxConfig{
		Iso:      sql.LevelDefault,
		ReadOnly: false,
	}

	for _, fn := range cfn {
		fn(&txCfg)
	}

	return txm.isolate(ctx, cb, txCfg)
}

func (txm *SqlxTxManager) isolate(ctx context.Context, cb TxCallback, txCfg TxConfig) error {
	txx, err := txm.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: txCfg.ReadOnly, Isolation: txCfg.Iso})
	if err != nil {
		return errors.Wrapf(
			err,
			"could not start transaction. read-only: %v, isolation: %d",
			txCfg.ReadOnly, txCfg.Iso,
		)
	}

	if err := cb(ctx, txx); err != nil {
		if isDeadlock(err) {
			err = &deadlockError{cause: err, readOnly: txCfg.ReadOnly, iso: txCfg.Iso}
		}

		if rbErr := txx.Rollback(); rbErr != nil {
			return errors.Wrap(err, "ROLLBACK: "+rbErr.Error())
		}

		return err
	}

	if err := txx.Commit(); err != nil {
		if isDeadlock(err) {
			return &deadlockError{cause: err, readOnly: txCfg.ReadOnly, iso: txCfg.Iso}
		}

		return errors.Wrapf(
			err,
			"could not commit transaction. read-only: %v, isolation: %d",
			txCfg.ReadOnly, txCfg.Iso,
		)
	}

	return nil
}

func isDeadlock(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}

// deadlockError matches ErrTxDeadlock and still unwraps to the driver error.
type deadlockError struct {
	cause    error
	readOnly bool
	iso      sql.IsolationLevel
}

func (e *deadlockError) Error() string {
	return ErrTxDeadlock.Error() + ": " + e.cause.Error()
}

func (e *deadlockError) Is(target error) bool {
	return target == ErrTxDeadlock
}

func (e *deadlockError) Unwrap() error {
	return e.cause
}
