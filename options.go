package strata

type OptionFunc func(*Migrator) error
type ActionConfigurator func(a *Action)

type Action struct {
	steps int
}

// WithSteps applies at most steps pending migrations. Zero or less means all of them.
func WithSteps(steps int) ActionConfigurator {
	return func(a *Action) {
		a.steps = steps
	}
}

func CreateConfigurators(steps int) []ActionConfigurator {
	var configurators []ActionConfigurator
	if steps > 0 {
		configurators = append(configurators, WithSteps(steps))
	}

	return configurators
}

// WithObserver receives an Event for every migration as soon as it has
// been applied or reverted, or has failed.
func WithObserver(o Observer) OptionFunc {
	return func(m *Migrator) error {
		m.observers = append(m.observers, o)
		return nil
	}
}
