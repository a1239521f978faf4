package config

// Config is the fully resolved service configuration.
type Config struct {
	*Env
	Handlers *HandlerTable
}

// Load reads the environment and resolves the handler table. The table comes
// from HANDLERS_FILE when set and from the provider's built-in table
// otherwise; DEFAULT_HANDLER overrides the table's default.
func Load() (*Config, error) {
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	return Resolve(env)
}

// Resolve builds a Config from an already loaded environment.
func Resolve(env *Env) (*Config, error) {
	table := DefaultHandlerTable(env.Provider)
	if env.HandlersFile != "" {
		t, err := LoadHandlerTable(env.HandlersFile)
		if err != nil {
			return nil, err
		}
		table = t
	}

	if env.DefaultHandler != "" {
		table.Default = env.DefaultHandler
		if err := table.Validate(); err != nil {
			return nil, err
		}
	}

	return &Config{Env: env, Handlers: table}, nil
}
