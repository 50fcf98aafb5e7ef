package database

import (
	"context"

	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/migration"
)

type Gateway interface {
	SetLogger(lg logger.Logger)
	Observe(o Observer)
	Close() error

	Migrate(ctx context.Context, defs migration.Definitions, p Plan) (ProcessedList, error)
	Rollback(ctx context.Context, defs migration.Definitions) (ProcessedList, error)
	Reset(ctx context.Context, defs migration.Definitions) (*ResetResult, error)
	Status(ctx context.Context, defs migration.Definitions) (*Report, error)
}
