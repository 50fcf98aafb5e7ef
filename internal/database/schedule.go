package database

import (
	"github.com/denismitr/strata/migration"
	"github.com/pkg/errors"
)

// Step pairs a ledger record with the definition able to revert it.
type Step struct {
	Definition migration.Definition
	Record     Record
}

// ScheduleForMigration returns the pending set: every definition absent from
// the ledger, in catalog order. A plan with Steps <= 0 takes all of them.
func ScheduleForMigration(defs migration.Definitions, executedIDs []string, p Plan) migration.Definitions {
	executed := make(map[string]struct{}, len(executedIDs))
	for _, id := range executedIDs {
		executed[id] = struct{}{}
	}

	var scheduled migration.Definitions
	for i := range defs {
		if _, ok := executed[defs[i].ID]; ok {
			continue
		}

		if p.Steps > 0 && len(scheduled) >= p.Steps {
			break
		}

		scheduled = append(scheduled, defs[i])
	}

	return scheduled
}

// ScheduleForRollback expects the ids of one batch in insertion order
// and returns them last applied first.
func ScheduleForRollback(defs migration.Definitions, batch uint, ids []string) ([]Step, error) {
	reversed := make([]Record, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		reversed = append(reversed, Record{Migration: ids[i], Batch: batch})
	}

	return resolve(defs, reversed)
}

// ScheduleForReset expects the whole ledger already ordered newest first.
func ScheduleForReset(defs migration.Definitions, records []Record) ([]Step, error) {
	return resolve(defs, records)
}

func resolve(defs migration.Definitions, records []Record) ([]Step, error) {
	steps := make([]Step, 0, len(records))
	for i := range records {
		d, ok := defs.Find(records[i].Migration)
		if !ok {
			return nil, errors.Wrapf(
				migration.ErrMigrationNotFound,
				"[%s] from batch %d is recorded as executed but is missing from the catalog",
				records[i].Migration, records[i].Batch,
			)
		}

		steps = append(steps, Step{Definition: d, Record: records[i]})
	}

	return steps, nil
}

// Orphans returns the ledger records that have no definition.
func Orphans(defs migration.Definitions, records []Record) []Record {
	var result []Record
	for i := range records {
		if _, ok := defs.Find(records[i].Migration); !ok {
			result = append(result, records[i])
		}
	}
	return result
}
