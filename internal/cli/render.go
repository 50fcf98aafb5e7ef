package cli

import (
	"fmt"
	"io"

	"github.com/denismitr/strata"
	"github.com/logrusorgru/aurora/v3"
)

var verbs = map[string]string{
	strata.OperationMigrate:  "migrated",
	strata.OperationRollback: "rolled back",
	strata.OperationReset:    "rolled back",
}

type renderer struct {
	out       io.Writer
	au        aurora.Aurora
	succeeded int
	failed    int
}

func newRenderer(out io.Writer, color bool) *renderer {
	return &renderer{out: out, au: aurora.NewAurora(color)}
}

func (r *renderer) event(e strata.Event) {
	if e.Outcome == strata.OutcomeFailed {
		r.failed++
		_, _ = fmt.Fprintf(r.out, "%s %s %s: %v\n", r.au.Red("[FAIL]"), e.MigrationID, e.Name, e.Err)
		return
	}

	r.succeeded++
	_, _ = fmt.Fprintf(r.out, "%s %s %s (batch %d) %s\n", r.au.Green("[ OK ]"), e.MigrationID, e.Name, e.Batch, verbs[e.Operation])
}

func (r *renderer) reset() {
	r.succeeded = 0
	r.failed = 0
}

// summary closes an operation. A run that failed before any migration
// was touched prints nothing, leaving the error to the caller.
func (r *renderer) summary(operation string, err error) {
	if r.succeeded == 0 && r.failed == 0 {
		if err != nil {
			return
		}

		_, _ = fmt.Fprintf(r.out, "%s nothing to %s\n", r.au.Cyan("[INFO]"), operation)
		return
	}

	line := fmt.Sprintf("%s: %d succeeded, %d failed", operation, r.succeeded, r.failed)
	if r.failed > 0 {
		_, _ = fmt.Fprintln(r.out, r.au.Red(line))
		return
	}

	_, _ = fmt.Fprintln(r.out, r.au.Green(line))
}

func (r *renderer) status(report *strata.Report) {
	for _, s := range report.States {
		if s.Executed {
			_, _ = fmt.Fprintf(
				r.out, "%s %s %s (batch %d, %s)\n",
				r.au.Green("[ UP ]"), s.ID, s.Name, s.Batch, s.ExecutedAt.Format("2006-01-02 15:04:05"),
			)
			continue
		}

		_, _ = fmt.Fprintf(r.out, "%s %s %s\n", r.au.Yellow("[DOWN]"), s.ID, s.Name)
	}

	for _, o := range report.Orphaned {
		_, _ = fmt.Fprintf(r.out, "%s %s (batch %d) is recorded but unknown\n", r.au.Magenta("[ ?? ]"), o.Migration, o.Batch)
	}

	_, _ = fmt.Fprintf(
		r.out, "status: %d total, %d executed, %d pending, %d orphaned\n",
		len(report.States), len(report.States)-report.Pending(), report.Pending(), len(report.Orphaned),
	)
}
