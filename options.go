package shopflow

import (
	"log"
	"time"
)

// Logger is the minimal logging interface the engine and its collaborators
// depend on. The default writes through the standard library logger.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}

// Config holds the configuration for the workflow engine.
type Config struct {
	// StepTimeout bounds a single step's execution. The original platform
	// left steps unbounded; a hanging step hung the whole workflow. Zero
	// disables the bound and preserves that behavior.
	StepTimeout time.Duration

	// CompensationTimeout bounds a single compensation attempt. Zero means
	// use StepTimeout.
	CompensationTimeout time.Duration
}

// DefaultConfig returns the default configuration for the engine.
func DefaultConfig() Config {
	return Config{
		StepTimeout:         10 * time.Second,
		CompensationTimeout: 10 * time.Second,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.StepTimeout < 0 {
		return ErrInvalidConfig
	}
	if c.CompensationTimeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option is a function that modifies the Config.
type Option func(*Config)

// WithStepTimeout sets the single step timeout. Zero disables it.
func WithStepTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.StepTimeout = timeout
	}
}

// WithCompensationTimeout sets the single compensation attempt timeout.
func WithCompensationTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.CompensationTimeout = timeout
	}
}

// ApplyOptions applies the given options to a default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
