package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/denismitr/strata/internal/logger"
	"github.com/denismitr/strata/migration"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const DefaultMigrationsFolder = "./migrations"

const (
	sqlExtension       = "sql"
	migrateFileSuffix  = "migrate"
	rollbackFileSuffix = "rollback"

	migrateFileFullExtension  = ".migrate.sql"
	rollbackFileFullExtension = ".rollback.sql"

	sequenceWidth = 3
)

var descriptionRegexp = regexp.MustCompile(`[^A-Za-z0-9]+`)

// LocalFileSource reads NNN_description.migrate.sql files and their optional
// NNN_description.rollback.sql counterparts from one folder.
type LocalFileSource struct {
	folder string
	lg     logger.Logger
}

var _ Source = (*LocalFileSource)(nil)

// NewLocalFSSource creates the folder when it does not exist yet.
func NewLocalFSSource(folder string, lg logger.Logger) (*LocalFileSource, error) {
	if lg == nil {
		lg = &logger.NullLogger{}
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create migrations folder [%s]", folder)
	}

	return &LocalFileSource{folder: folder, lg: lg}, nil
}

func (lfs *LocalFileSource) Folder() string {
	return lfs.folder
}

func (lfs *LocalFileSource) Select(ctx context.Context) (migration.Definitions, error) {
	ids, err := lfs.readIDs()
	if err != nil {
		return nil, err
	}

	defs := make(migration.Definitions, len(ids))
	g, gCtx := errgroup.WithContext(ctx)

	for i := range ids {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			d, err := lfs.readOne(ids[i])
			if err != nil {
				mErr := errors.Wrapf(err, "with id %s", ids[i])
				lfs.lg.Error(mErr)
				return mErr
			}

			defs[i] = d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return defs.Sorted()
}

func (lfs *LocalFileSource) IsValid() bool {
	info, err := os.Stat(lfs.folder)
	if os.IsNotExist(err) {
		return false
	}

	return err == nil && info.IsDir()
}

func (lfs *LocalFileSource) AlreadyExists(description string) bool {
	ids, err := lfs.readIDs()
	if err != nil {
		return false
	}

	want := normalizeDescription(description)
	for _, id := range ids {
		if _, desc, err := migration.ParseID(id); err == nil && desc == want {
			return true
		}
	}

	return false
}

// Create writes an empty migration with the next sequence number and
// returns its id.
func (lfs *LocalFileSource) Create(description string, withRollback bool) (string, error) {
	desc := normalizeDescription(description)
	if desc == "" {
		return "", errors.Wrapf(migration.ErrInvalidMigrationID, "description [%s] is empty", description)
	}

	if lfs.AlreadyExists(desc) {
		return "", errors.Wrapf(ErrMigrationAlreadyExists, "description [%s]", desc)
	}

	ids, err := lfs.readIDs()
	if err != nil {
		return "", err
	}

	var next uint64 = 1
	for _, id := range ids {
		seq, _, err := migration.ParseID(id)
		if err != nil {
			return "", err
		}

		if seq >= next {
			next = seq + 1
		}
	}

	id := fmt.Sprintf("%0*d_%s", sequenceWidth, next, desc)
	if _, _, err := migration.ParseID(id); err != nil {
		return "", err
	}

	if err := lfs.touch(id + migrateFileFullExtension); err != nil {
		return "", err
	}

	if withRollback {
		if err := lfs.touch(id + rollbackFileFullExtension); err != nil {
			return "", err
		}
	}

	return id, nil
}

func (lfs *LocalFileSource) touch(name string) error {
	path := filepath.Join(lfs.folder, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "could not create file [%s]", path)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "could not close file [%s]", path)
	}

	return nil
}

// readIDs returns the ids that have a migrate file. Files that are not .sql
// are ignored, while a badly named .sql file is an error.
func (lfs *LocalFileSource) readIDs() ([]string, error) {
	entries, err := os.ReadDir(lfs.folder)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read migrations from folder %s", lfs.folder)
	}

	migrate := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != "."+sqlExtension {
			continue
		}

		id, suffix, err := splitFileName(e.Name())
		if err != nil {
			return nil, errors.Wrapf(err, "file %s is not a valid migration name", e.Name())
		}

		if _, _, err := migration.ParseID(id); err != nil {
			return nil, errors.Wrapf(err, "file %s", e.Name())
		}

		if suffix == migrateFileSuffix {
			migrate[id] = true
		} else if _, ok := migrate[id]; !ok {
			migrate[id] = false
		}
	}

	ids := make([]string, 0, len(migrate))
	for id, ok := range migrate {
		if !ok {
			return nil, errors.Wrapf(ErrMissingMigrateFile, "%s has only a rollback file", id)
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

func (lfs *LocalFileSource) readOne(id string) (migration.Definition, error) {
	migrateContents, err := os.ReadFile(filepath.Join(lfs.folder, id+migrateFileFullExtension))
	if err != nil {
		return migration.Definition{}, err
	}

	rollbackContents, err := os.ReadFile(filepath.Join(lfs.folder, id+rollbackFileFullExtension))
	if err != nil && !os.IsNotExist(err) {
		return migration.Definition{}, err
	}

	_, desc, err := migration.ParseID(id)
	if err != nil {
		return migration.Definition{}, err
	}

	return migration.NewDefinition(id, migration.NewScript(
		migration.Title(desc),
		migration.SplitStatements(string(migrateContents)),
		migration.SplitStatements(string(rollbackContents)),
	))
}

func splitFileName(name string) (string, string, error) {
	segments := strings.Split(filepath.Base(name), ".")
	if len(segments) != 3 {
		return "", "", ErrNotAMigrationFile
	}

	if segments[2] != sqlExtension || !(segments[1] == migrateFileSuffix || segments[1] == rollbackFileSuffix) {
		return "", "", ErrNotAMigrationFile
	}

	return segments[0], segments[1], nil
}

func normalizeDescription(description string) string {
	return strings.Trim(descriptionRegexp.ReplaceAllString(strings.ToLower(description), "_"), "_")
}
