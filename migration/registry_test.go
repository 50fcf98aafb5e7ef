package migration

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("definitions come back in sequence order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("003_add_index", noop("Add Index")))
		require.NoError(t, r.Register("001_create_users", noop("Create Users")))
		require.NoError(t, r.Register("002_create_posts", noop("Create Posts")))

		assert.Equal(t, 3, r.Len())
		assert.Equal(t, []string{"001_create_users", "002_create_posts", "003_add_index"}, r.Definitions().IDs())
	})

	t.Run("ids must be unique", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("001_create_users", noop("Create Users")))

		err := r.Register("001_create_users", noop("Create Users"))
		assert.True(t, errors.Is(err, ErrDuplicateMigration))
	})

	t.Run("sequence numbers must be unique", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("001_create_users", noop("Create Users")))

		err := r.Register("1_create_posts", noop("Create Posts"))
		assert.True(t, errors.Is(err, ErrDuplicateMigration))
	})

	t.Run("invalid ids are rejected", func(t *testing.T) {
		r := NewRegistry()

		err := r.Register("create_users", noop("Create Users"))
		assert.True(t, errors.Is(err, ErrInvalidMigrationID))
		assert.Equal(t, 0, r.Len())
	})

	t.Run("must register panics on programming errors", func(t *testing.T) {
		r := NewRegistry()

		assert.Panics(t, func() {
			r.MustRegister("bad id", noop("Bad"))
		})
	})
}
