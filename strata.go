package strata

import (
	"context"

	"github.com/denismitr/strata/internal/database"
	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/internal/source"
	"github.com/denismitr/strata/migration"
	"github.com/pkg/errors"
)

var ErrGatewayNotInitialized = errors.New("database gateway has not been initialized")

type CloserFunc func() error

type selectorFactory func(lg logger.Logger) (source.Selector, error)

type Migrator struct {
	lg        logger.Logger
	gateway   database.Gateway
	factories []selectorFactory
	selector  source.Selector
	observers []database.Observer
}

// NewMigrator creates a migrator out of option callbacks. A database option
// such as UseMySQL is required. When no source option is given the
// migrations registered with migration.Register are used.
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = &logger.NullLogger{}

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			if m.gateway != nil {
				if closeErr := m.gateway.Close(); closeErr != nil {
					return nil, nil, errors.Wrap(err, closeErr.Error())
				}
			}

			return nil, nil, err
		}
	}

	if m.gateway == nil {
		return nil, nil, ErrGatewayNotInitialized
	}

	selector, err := m.createSelector()
	if err != nil {
		if closeErr := m.gateway.Close(); closeErr != nil {
			return nil, nil, errors.Wrap(err, closeErr.Error())
		}

		return nil, nil, err
	}

	m.selector = selector
	m.gateway.SetLogger(m.lg)

	for _, o := range m.observers {
		m.gateway.Observe(o)
	}

	return m, m.close, nil
}

func (m *Migrator) createSelector() (source.Selector, error) {
	if len(m.factories) == 0 {
		return source.NewRegistrySource(migration.Default()), nil
	}

	selectors := make([]source.Selector, 0, len(m.factories))
	for _, f := range m.factories {
		s, err := f(m.lg)
		if err != nil {
			return nil, err
		}

		selectors = append(selectors, s)
	}

	if len(selectors) == 1 {
		return selectors[0], nil
	}

	return source.NewCompositeSource(selectors...), nil
}

// Migrate applies all pending migrations as a new batch and returns the
// names of the applied ones. An empty list means there was nothing to do.
func (m *Migrator) Migrate(ctx context.Context, cfs ...ActionConfigurator) ([]string, error) {
	act := new(Action)
	for _, f := range cfs {
		f(act)
	}

	defs, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not select migrations")
	}

	migrated, err := m.gateway.Migrate(ctx, defs, database.Plan{Steps: act.steps})
	if err != nil {
		m.lg.Error(err)
		return migrated.Names(), err
	}

	return migrated.Names(), nil
}

// Rollback reverts the most recent batch and returns the reverted names
// in the order they were reverted.
func (m *Migrator) Rollback(ctx context.Context) ([]string, error) {
	defs, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not select migrations")
	}

	rolledBack, err := m.gateway.Rollback(ctx, defs)
	if err != nil {
		m.lg.Error(err)
		return rolledBack.Names(), err
	}

	return rolledBack.Names(), nil
}

// Reset reverts every executed migration, carrying on past failures,
// and then clears the ledger.
func (m *Migrator) Reset(ctx context.Context) (*ResetResult, error) {
	defs, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not select migrations")
	}

	result, err := m.gateway.Reset(ctx, defs)
	if err != nil {
		m.lg.Error(err)
		return result, err
	}

	return result, nil
}

// Refresh resets everything and then migrates again from scratch.
func (m *Migrator) Refresh(ctx context.Context, cfs ...ActionConfigurator) (*ResetResult, []string, error) {
	result, err := m.Reset(ctx)
	if err != nil {
		return result, nil, err
	}

	migrated, err := m.Migrate(ctx, cfs...)
	if err != nil {
		return result, migrated, err
	}

	return result, migrated, nil
}

// Status lists every known migration in execution order with its ledger state.
func (m *Migrator) Status(ctx context.Context) (*Report, error) {
	defs, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not select migrations")
	}

	report, err := m.gateway.Status(ctx, defs)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	return report, nil
}

// Source - returns migrator selector if it implements the full source.Source interface
func (m *Migrator) Source() source.Source {
	if s, ok := m.selector.(source.Source); ok {
		return s
	}

	if c, ok := m.selector.(*source.CompositeSource); ok {
		return c.Source()
	}

	return nil
}

func (m *Migrator) close() error {
	if m.gateway == nil {
		return ErrGatewayNotInitialized
	}

	if err := m.gateway.Close(); err != nil {
		m.lg.Error(err)
		return err
	}

	return nil
}
