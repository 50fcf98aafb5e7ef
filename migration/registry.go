package migration

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry is an explicit list of compiled-in migrations. Migrations usually
// add themselves from an init function of the package holding them:
//
//	func init() {
//		migration.Register("001_create_users", NewCreateUsers)
//	}
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
	seqs map[uint64]string
}

func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
		seqs: make(map[uint64]string),
	}
}

func (r *Registry) Register(id string, c Constructor) error {
	d, err := NewDefinition(id, c)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[id]; ok {
		return errors.Wrapf(ErrDuplicateMigration, "id [%s] is already registered", id)
	}

	if other, ok := r.seqs[d.Seq]; ok {
		return errors.Wrapf(ErrDuplicateMigration, "[%s] reuses sequence number of [%s]", id, other)
	}

	r.defs[id] = d
	r.seqs[d.Seq] = id

	return nil
}

func (r *Registry) MustRegister(id string, c Constructor) {
	if err := r.Register(id, c); err != nil {
		panic(err)
	}
}

// Definitions returns all registered migrations ordered by sequence number.
func (r *Registry) Definitions() Definitions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(Definitions, 0, len(r.defs))
	for _, d := range r.defs {
		result = append(result, d)
	}

	// registration already guarantees unique ids and sequence numbers
	sorted, _ := result.Sorted()

	return sorted
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

var defaultRegistry = NewRegistry()

// Default returns the package level registry used by Register.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a migration to the default registry and panics on a bad id
// or a duplicate, which can only be a programming error.
func Register(id string, c Constructor) {
	defaultRegistry.MustRegister(id, c)
}
