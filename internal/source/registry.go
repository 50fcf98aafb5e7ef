package source

import (
	"context"

	"github.com/denismitr/strata/migration"
)

// RegistrySource selects compiled-in migrations.
type RegistrySource struct {
	registry *migration.Registry
}

var _ Selector = (*RegistrySource)(nil)

func NewRegistrySource(r *migration.Registry) *RegistrySource {
	return &RegistrySource{registry: r}
}

// NewInMemorySource builds a private registry out of the given definitions.
func NewInMemorySource(defs ...migration.Definition) (*RegistrySource, error) {
	r := migration.NewRegistry()
	for i := range defs {
		if err := r.Register(defs[i].ID, defs[i].New); err != nil {
			return nil, err
		}
	}

	return NewRegistrySource(r), nil
}

func (s *RegistrySource) Select(_ context.Context) (migration.Definitions, error) {
	return s.registry.Definitions(), nil
}
