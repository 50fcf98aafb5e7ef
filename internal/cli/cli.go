package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/denismitr/strata"
	"github.com/denismitr/strata/internal/source"
	"github.com/pkg/errors"
)

// ResetConfirmationPhrase must be typed before reset runs.
const ResetConfirmationPhrase = "reset all migrations"

var (
	ErrFolderInvalid        = errors.New("migrations folder is invalid")
	ErrSourceTypeIsNotValid = errors.New("source type is not valid")
	ErrResetNotConfirmed    = errors.New("reset was not confirmed")
)

type (
	CloserFunc func() error

	ActionConfig struct {
		Steps int
	}

	App struct {
		source   source.Source
		migrator *strata.Migrator
		r        *renderer
	}
)

func New(cfg Config, out io.Writer) (*App, CloserFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	r := newRenderer(out, cfg.Color)

	m, closer, err := createMigrator(cfg, strata.WithObserver(r.event))
	if err != nil {
		return nil, nil, err
	}

	s := m.Source()
	if s == nil {
		_ = closer()
		return nil, nil, ErrSourceTypeIsNotValid
	}

	return &App{
		source:   s,
		migrator: m,
		r:        r,
	}, CloserFunc(closer), nil
}

func (app *App) CreateMigration(description string, withRollback bool) (string, error) {
	if !app.source.IsValid() {
		return "", ErrFolderInvalid
	}

	id, err := app.source.Create(description, withRollback)
	if err != nil {
		return "", err
	}

	_, _ = fmt.Fprintf(app.r.out, "%s created %s\n", app.r.au.Green("[ OK ]"), id)

	return id, nil
}

func (app *App) Migrate(ctx context.Context, cfg ActionConfig) error {
	app.r.reset()
	_, err := app.migrator.Migrate(ctx, strata.CreateConfigurators(cfg.Steps)...)
	app.r.summary(strata.OperationMigrate, err)

	return err
}

func (app *App) Rollback(ctx context.Context) error {
	app.r.reset()
	_, err := app.migrator.Rollback(ctx)
	app.r.summary(strata.OperationRollback, err)

	return err
}

func (app *App) Reset(ctx context.Context) error {
	app.r.reset()
	result, err := app.migrator.Reset(ctx)
	app.r.summary(strata.OperationReset, err)

	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(app.r.out, result.Message)
	if result.Cleared > 0 {
		_, _ = fmt.Fprintf(
			app.r.out, "%s %d ledger rows were cleared without a successful rollback\n",
			app.r.au.Yellow("[WARN]"), result.Cleared,
		)
	}

	return nil
}

func (app *App) Refresh(ctx context.Context, cfg ActionConfig) error {
	if err := app.Reset(ctx); err != nil {
		return err
	}

	return app.Migrate(ctx, cfg)
}

func (app *App) Status(ctx context.Context) error {
	report, err := app.migrator.Status(ctx)
	if err != nil {
		return err
	}

	app.r.status(report)

	return nil
}

// ConfirmReset accepts the phrase given up front or asks for it on in.
func ConfirmReset(given string, in io.Reader, out io.Writer) error {
	if given == "" {
		_, _ = fmt.Fprintf(out, "This reverts every migration. Type %q to continue: ", ResetConfirmationPhrase)

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "could not read confirmation")
		}

		given = line
	}

	if strings.TrimSpace(given) != ResetConfirmationPhrase {
		return ErrResetNotConfirmed
	}

	return nil
}
