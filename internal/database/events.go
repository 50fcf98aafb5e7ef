package database

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Event reports the result of one migration as soon as it is known.
type Event struct {
	Operation   string
	MigrationID string
	Name        string
	Batch       uint
	Outcome     Outcome
	Err         error
}

type Observer func(Event)

type Observers []Observer

func (o Observers) Notify(e Event) {
	for _, fn := range o {
		fn(e)
	}
}
