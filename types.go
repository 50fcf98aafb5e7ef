package strata

import "github.com/denismitr/strata/internal/database"

type (
	Event          = database.Event
	Outcome        = database.Outcome
	Observer       = database.Observer
	MigrationError = database.MigrationError
	Processed      = database.Processed
	ProcessedList  = database.ProcessedList
	Failure        = database.Failure
	ResetResult    = database.ResetResult
	Report         = database.Report
	State          = database.State
	Record         = database.Record
)

const (
	OutcomeSucceeded = database.OutcomeSucceeded
	OutcomeFailed    = database.OutcomeFailed

	OperationMigrate  = database.OperationMigrate
	OperationRollback = database.OperationRollback
	OperationReset    = database.OperationReset
)
