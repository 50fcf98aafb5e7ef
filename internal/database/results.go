package database

import "time"

// Processed is one migration applied or reverted by a call.
type Processed struct {
	ID    string
	Name  string
	Batch uint
}

type ProcessedList []Processed

func (p ProcessedList) Names() []string {
	result := make([]string, 0, len(p))
	for i := range p {
		result = append(result, p[i].Name)
	}
	return result
}

type Failure struct {
	ID   string
	Name string
	Err  error
}

type ResetResult struct {
	Reverted ProcessedList
	Failed   []Failure
	// Cleared counts the rows the final ledger truncation removed, which
	// are the rows of migrations that could not be reverted.
	Cleared int64
	Message string
}

type State struct {
	ID         string
	Name       string
	Executed   bool
	Batch      uint
	ExecutedAt time.Time
}

type Report struct {
	States   []State
	Orphaned []Record
}

func (r *Report) Pending() int {
	n := 0
	for i := range r.States {
		if !r.States[i].Executed {
			n++
		}
	}
	return n
}
