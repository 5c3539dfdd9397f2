package docgen

// Defaults applied when a request or config leaves options unset.
const (
	DefaultPageSize     = "LETTER"
	DefaultDPI          = 300
	DefaultMaxGroupRows = 500
)

// Config holds pipeline-wide settings. Pool sizing and timeouts live with
// the pool adapter.
type Config struct {
	// DefaultPageSize applies when a request does not name one.
	DefaultPageSize string
	// DefaultDPI is the print resolution for pooled rendering.
	DefaultDPI int
	// MaxGroupRows bounds repeating groups in structured layouts.
	MaxGroupRows int
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: DefaultPageSize,
		DefaultDPI:      DefaultDPI,
		MaxGroupRows:    DefaultMaxGroupRows,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultPageSize == "" {
		c.DefaultPageSize = DefaultPageSize
	}
	if c.DefaultDPI <= 0 {
		c.DefaultDPI = DefaultDPI
	}
	if c.MaxGroupRows <= 0 {
		c.MaxGroupRows = DefaultMaxGroupRows
	}
	return c
}

// applyOutputDefaults fills unset request options from config.
func (c Config) applyOutputDefaults(opts OutputOptions) OutputOptions {
	if opts.PageSize == "" {
		opts.PageSize = c.DefaultPageSize
	}
	if opts.DPI <= 0 {
		opts.DPI = c.DefaultDPI
	}
	return opts
}
