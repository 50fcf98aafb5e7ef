package migration

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopMigration struct {
	name string
}

func (n noopMigration) Name() string { return n.name }

func (n noopMigration) Up(context.Context) error { return nil }

func (n noopMigration) Down(context.Context) error { return nil }

func noop(name string) Constructor {
	return func(*Schema) Migration {
		return noopMigration{name: name}
	}
}

func TestParseID(t *testing.T) {
	tt := []struct {
		id          string
		seq         uint64
		description string
		err         bool
	}{
		{id: "001_create_users", seq: 1, description: "create_users"},
		{id: "0042_add-index", seq: 42, description: "add-index"},
		{id: "1596897167_create_foo_table", seq: 1596897167, description: "create_foo_table"},
		{id: "create_users", err: true},
		{id: "001_", err: true},
		{id: "001", err: true},
		{id: "001_create users", err: true},
		{id: "", err: true},
	}

	for _, tc := range tt {
		t.Run(tc.id, func(t *testing.T) {
			seq, description, err := ParseID(tc.id)
			if tc.err {
				assert.True(t, errors.Is(err, ErrInvalidMigrationID))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.seq, seq)
			assert.Equal(t, tc.description, description)
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Create Users", Title("create_users"))
	assert.Equal(t, "Add Index", Title("add-index"))
	assert.Equal(t, "Drop Legacy Column", Title("drop__legacy_column"))
}

func TestDefinitions_Sorted(t *testing.T) {
	t.Run("numeric order beats lexical order", func(t *testing.T) {
		defs := Definitions{
			mustDefinition(t, "10_third"),
			mustDefinition(t, "2_second"),
			mustDefinition(t, "001_first"),
		}

		sorted, err := defs.Sorted()
		require.NoError(t, err)

		assert.Equal(t, []string{"001_first", "2_second", "10_third"}, sorted.IDs())
		assert.Equal(t, []string{"10_third", "2_second", "001_first"}, defs.IDs(), "receiver must stay untouched")
	})

	t.Run("duplicate sequence numbers are rejected", func(t *testing.T) {
		defs := Definitions{
			mustDefinition(t, "001_create_users"),
			mustDefinition(t, "1_create_posts"),
		}

		_, err := defs.Sorted()
		assert.True(t, errors.Is(err, ErrDuplicateMigration))
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		defs := Definitions{
			mustDefinition(t, "001_create_users"),
			mustDefinition(t, "001_create_users"),
		}

		_, err := defs.Sorted()
		assert.True(t, errors.Is(err, ErrDuplicateMigration))
	})
}

func TestDefinition_Instantiate(t *testing.T) {
	t.Run("constructor result is returned", func(t *testing.T) {
		d := mustDefinition(t, "001_create_users")

		m, err := d.Instantiate(nil)
		require.NoError(t, err)
		assert.Equal(t, "Create Users", m.Name())
	})

	t.Run("nil migration is a configuration error", func(t *testing.T) {
		d, err := NewDefinition("001_broken", func(*Schema) Migration { return nil })
		require.NoError(t, err)

		_, err = d.Instantiate(nil)
		assert.True(t, errors.Is(err, ErrNilMigration))
	})

	t.Run("missing constructor is rejected up front", func(t *testing.T) {
		_, err := NewDefinition("001_broken", nil)
		assert.True(t, errors.Is(err, ErrNilMigration))
	})
}

func TestDefinitions_Find(t *testing.T) {
	defs := Definitions{mustDefinition(t, "001_create_users"), mustDefinition(t, "002_add_index")}

	d, ok := defs.Find("002_add_index")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), d.Seq)

	_, ok = defs.Find("003_missing")
	assert.False(t, ok)
}

func mustDefinition(t *testing.T, id string) Definition {
	t.Helper()

	_, description, err := ParseID(id)
	require.NoError(t, err)

	d, err := NewDefinition(id, noop(Title(description)))
	require.NoError(t, err)

	return d
}
