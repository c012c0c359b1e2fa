package txvalidator

import (
	"runtime"

	"go.uber.org/zap"
)

// Option configures a validation run.
type Option func(*Options)

// Options holds all configuration for a validation run.
type Options struct {
	// Profile names an enabled-rule subset. Empty means all rules.
	Profile string

	// DisabledRules are excluded by name regardless of profile.
	DisabledRules map[string]bool

	// SchemaSource overrides the schema bundle fetch location for this run.
	// It is a URL template with {schema} and {version} placeholders.
	SchemaSource string

	// SkipSchema disables formal XSD validation, leaving rules only.
	SkipSchema bool

	// Workers bounds concurrent rule and schema-validation tasks.
	Workers int

	// Progress receives phase events. Nil is a no-op.
	Progress ProgressSink

	// Logger receives structured debug output. Nil falls back to the
	// engine's own logger.
	Logger *zap.Logger
}

// DefaultOptions returns the default run configuration.
func DefaultOptions() *Options {
	return &Options{
		DisabledRules: map[string]bool{},
		Workers:       runtime.NumCPU(),
	}
}

// WithProfile selects a named enabled-rule subset.
func WithProfile(name string) Option {
	return func(o *Options) {
		o.Profile = name
	}
}

// WithDisabledRules excludes rules by name.
func WithDisabledRules(names ...string) Option {
	return func(o *Options) {
		for _, n := range names {
			o.DisabledRules[n] = true
		}
	}
}

// WithSchemaSource overrides the schema bundle fetch location.
func WithSchemaSource(source string) Option {
	return func(o *Options) {
		o.SchemaSource = source
	}
}

// WithoutSchemaValidation disables formal XSD validation.
func WithoutSchemaValidation() Option {
	return func(o *Options) {
		o.SkipSchema = true
	}
}

// WithWorkers bounds concurrent task execution. Values below one fall back
// to the number of CPUs.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithProgress installs a sink for phase events.
func WithProgress(sink ProgressSink) Option {
	return func(o *Options) {
		o.Progress = sink
	}
}

// WithLogger installs a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
