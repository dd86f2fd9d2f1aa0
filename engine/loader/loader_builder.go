package loader

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithRenderer is an option builder that sets the Renderer used to build loaded shapes eagerly.
// The renderer's logger becomes the loader's logger.
//
// Parameters:
//   - r: the renderer instance
//
// Returns:
//   - LoaderBuilderOption: a function that applies the renderer option to a loader
func WithRenderer(r renderer.Renderer) LoaderBuilderOption {
	return func(l *loader) {
		l.renderer = r
		if r != nil {
			l.logger = r.Logger()
		}
	}
}

// WithLogger is an option builder that sets the logger for load diagnostics.
//
// Parameters:
//   - logger: the logger, nil keeps the current one
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger *slog.Logger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithShape is an option builder that pre-populates the shape cache with a shape.
//
// Parameters:
//   - key: the cache key for the shape
//   - s: the shape to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the shape option to a loader
func WithShape(key string, s shape.Shape) LoaderBuilderOption {
	return func(l *loader) {
		l.shapeCache[key] = s
	}
}
