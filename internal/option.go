package internal

// Option customizes Run and RunMCP. The CLI passes the loaded config this
// way; tests inject synthetic configs through the same seam.
type Option func(*application)

type application struct {
	config *Config
}

// WithConfig supplies the configuration, bypassing file loading.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
