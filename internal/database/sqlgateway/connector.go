package sqlgateway

import (
	"context"
	"time"

	"github.com/denismitr/strata/internal/retry"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 100
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

// RetryingConnector waits for the database to answer before the first
// operation, which matters when the migrator starts next to a database
// container that is still booting.
type RetryingConnector struct {
	options   *ConnectOptions
	db        *sqlx.DB
	connected bool
}

func MakeRetryingConnector(db *sqlx.DB, options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{db: db, options: options}
}

func (c *RetryingConnector) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.options.MaxTimeout)
	defer cancel()

	err := retry.Incremental(ctx, c.options.RetryStep, c.options.MaxAttempts, func(attempt int) error {
		if err := c.db.PingContext(ctx); err != nil {
			return retry.Error(errors.Wrap(err, "db ping failed"), attempt)
		}

		var result int
		if err := c.db.QueryRowxContext(ctx, "SELECT 1").Scan(&result); err != nil {
			return retry.Error(errors.Wrap(err, "db probe query failed"), attempt)
		}

		return nil
	})

	if err != nil {
		return errors.Wrap(err, "could not establish DB connection")
	}

	c.connected = true

	return nil
}
