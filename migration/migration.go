package migration

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	ErrInvalidMigrationID = errors.New("invalid migration id")
	ErrDuplicateMigration = errors.New("duplicate migration")
	ErrNilMigration       = errors.New("migration constructor returned nothing")
	ErrMigrationNotFound  = errors.New("migration not found")
)

var idRegexp = regexp.MustCompile(`^(?P<seq>\d{1,19})_(?P<description>[A-Za-z0-9][A-Za-z0-9_\-]*)$`)

// Migration is a single schema change. Implementations are built fresh by
// their Constructor for every transaction they run in and keep no state
// between runs.
//
// Up must be safe to run again after a partial failure, which is what the
// Schema existence checks are for. Down is the inverse of Up; it may not
// be able to restore data that Up discarded.
type Migration interface {
	Name() string
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// Constructor binds a migration to the schema handle of the running transaction.
type Constructor func(s *Schema) Migration

type Definition struct {
	ID          string
	Seq         uint64
	Description string
	New         Constructor
}

func NewDefinition(id string, c Constructor) (Definition, error) {
	seq, description, err := ParseID(id)
	if err != nil {
		return Definition{}, err
	}

	if c == nil {
		return Definition{}, errors.Wrapf(ErrNilMigration, "migration [%s] has no constructor", id)
	}

	return Definition{ID: id, Seq: seq, Description: description, New: c}, nil
}

// Instantiate builds the migration bound to s.
func (d Definition) Instantiate(s *Schema) (Migration, error) {
	if d.New == nil {
		return nil, errors.Wrapf(ErrNilMigration, "migration [%s] has no constructor", d.ID)
	}

	m := d.New(s)
	if m == nil {
		return nil, errors.Wrapf(ErrNilMigration, "migration [%s]", d.ID)
	}

	return m, nil
}

type Definitions []Definition

func (d Definitions) Len() int {
	return len(d)
}

func (d Definitions) Less(i, j int) bool {
	if d[i].Seq != d[j].Seq {
		return d[i].Seq < d[j].Seq
	}
	return d[i].ID < d[j].ID
}

func (d Definitions) Swap(i, j int) {
	d[i], d[j] = d[j], d[i]
}

func (d Definitions) IDs() []string {
	result := make([]string, 0, len(d))
	for i := range d {
		result = append(result, d[i].ID)
	}
	return result
}

func (d Definitions) Find(id string) (Definition, bool) {
	for i := range d {
		if d[i].ID == id {
			return d[i], true
		}
	}
	return Definition{}, false
}

// Validate checks that ids and sequence numbers are unique.
// The receiver is expected to be sorted.
func (d Definitions) Validate() error {
	for i := 1; i < len(d); i++ {
		if d[i].ID == d[i-1].ID {
			return errors.Wrapf(ErrDuplicateMigration, "id [%s]", d[i].ID)
		}

		if d[i].Seq == d[i-1].Seq {
			return errors.Wrapf(
				ErrDuplicateMigration,
				"[%s] and [%s] share sequence number %d",
				d[i-1].ID, d[i].ID, d[i].Seq,
			)
		}
	}

	return nil
}

// Sorted returns a sorted and validated copy.
func (d Definitions) Sorted() (Definitions, error) {
	result := make(Definitions, len(d))
	copy(result, d)
	sort.Sort(result)

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// ParseID splits an id such as 001_create_users into its sequence number
// and description.
func ParseID(id string) (uint64, string, error) {
	matches := idRegexp.FindStringSubmatch(id)
	if matches == nil {
		return 0, "", errors.Wrapf(ErrInvalidMigrationID, "[%s] does not match NNN_description", id)
	}

	seq, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return 0, "", errors.Wrapf(ErrInvalidMigrationID, "[%s] sequence: %s", id, err.Error())
	}

	return seq, matches[2], nil
}

// Title turns a description like create_users into "Create Users".
func Title(description string) string {
	words := strings.FieldsFunc(description, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	return cases.Title(language.English).String(strings.Join(words, " "))
}
