package database

import "fmt"

// MigrationError names the migration that failed while being applied or reverted.
type MigrationError struct {
	Operation string
	ID        string
	Name      string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s of [%s] failed: %v", e.Operation, e.ID, e.Err)
	}

	return fmt.Sprintf("%s of [%s] (%s) failed: %v", e.Operation, e.ID, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func (e *MigrationError) Cause() error {
	return e.Err
}
