package source

import (
	"context"

	"github.com/denismitr/strata/migration"
	"github.com/pkg/errors"
)

var ErrNotAMigrationFile = errors.New("not a migration file")
var ErrMissingMigrateFile = errors.New("migration has no migrate file")
var ErrMigrationAlreadyExists = errors.New("migration already exists")

// Selector lists every known migration in execution order.
type Selector interface {
	Select(ctx context.Context) (migration.Definitions, error)
}

// Source is a Selector that can also create new migrations.
type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(description string) bool
	Create(description string, withRollback bool) (string, error)
}
