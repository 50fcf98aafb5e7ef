package source

import (
	"context"

	"github.com/denismitr/strata/migration"
	"github.com/pkg/errors"
)

// CompositeSource merges several selectors into a single ordered catalog.
type CompositeSource struct {
	selectors []Selector
}

var _ Selector = (*CompositeSource)(nil)

func NewCompositeSource(selectors ...Selector) *CompositeSource {
	return &CompositeSource{selectors: selectors}
}

func (c *CompositeSource) Select(ctx context.Context) (migration.Definitions, error) {
	var all migration.Definitions
	for _, s := range c.selectors {
		defs, err := s.Select(ctx)
		if err != nil {
			return nil, err
		}

		all = append(all, defs...)
	}

	sorted, err := all.Sorted()
	if err != nil {
		return nil, errors.Wrap(err, "migration sources conflict")
	}

	return sorted, nil
}

// Source returns the first selector able to create migrations.
func (c *CompositeSource) Source() Source {
	for _, s := range c.selectors {
		if src, ok := s.(Source); ok {
			return src
		}
	}

	return nil
}
