package profiler

import (
	"log/slog"
	"time"
)

// ProfilerBuilderOption is a functional option applied to a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger statistics are written to at Info level.
//
// Parameters:
//   - logger: the logger, nil keeps the current one
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the logger option to a profiler
func WithLogger(logger *slog.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithUpdateInterval sets how often statistics are logged.
//
// Parameters:
//   - d: the interval
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option to a profiler
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithClock replaces the time source.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the clock option to a profiler
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
