package pdfxref

import "log/slog"

// DefaultMaxMissedAttempts bounds how many locations the chain walker may
// probe without finding a cross-reference section.
const DefaultMaxMissedAttempts = 100

// Options controls how cross-reference data is resolved.
type Options struct {
	// Strict makes a looping /Prev chain or an exhausted search budget fatal.
	// Otherwise both are logged and the table gathered so far is used.
	Strict bool

	// MaxMissedAttempts bounds the chain walker. Zero means DefaultMaxMissedAttempts.
	MaxMissedAttempts int

	// Logger receives diagnostics about repairs. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns lenient options that log to slog.Default().
func DefaultOptions() Options {
	return Options{MaxMissedAttempts: DefaultMaxMissedAttempts}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) maxMissed() int {
	if o.MaxMissedAttempts <= 0 {
		return DefaultMaxMissedAttempts
	}
	return o.MaxMissedAttempts
}
