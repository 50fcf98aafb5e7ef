package strata

import (
	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/internal/source"
	"github.com/denismitr/strata/migration"
)

// UseLocalFolderSource reads SQL migration files from folder, creating
// the folder when it is missing.
func UseLocalFolderSource(folder string) OptionFunc {
	return func(m *Migrator) error {
		m.factories = append(m.factories, func(lg logger.Logger) (source.Selector, error) {
			return source.NewLocalFSSource(folder, lg)
		})

		return nil
	}
}

// UseRegistry selects the compiled-in migrations of r.
func UseRegistry(r *migration.Registry) OptionFunc {
	return func(m *Migrator) error {
		m.factories = append(m.factories, func(_ logger.Logger) (source.Selector, error) {
			return source.NewRegistrySource(r), nil
		})

		return nil
	}
}

func UseInMemorySource(defs ...migration.Definition) OptionFunc {
	return func(m *Migrator) error {
		s, err := source.NewInMemorySource(defs...)
		if err != nil {
			return err
		}

		m.factories = append(m.factories, func(_ logger.Logger) (source.Selector, error) {
			return s, nil
		})

		return nil
	}
}
