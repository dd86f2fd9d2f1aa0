package renderer

import (
	"context"
	"log/slog"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns false so
// callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// nopLogger returns a logger that discards all output.
func nopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// NopLogger returns a logger that discards all output. Packages layered on the renderer use it as their default.
//
// Returns:
//   - *slog.Logger: a silent logger
func NopLogger() *slog.Logger { return nopLogger() }
