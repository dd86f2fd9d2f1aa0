package graphics

import (
	"fmt"
	"log/slog"
)

// Tracked render state properties reported by Observer.PropertyUntouched.
const (
	PropertyBlendTest       = "Blend Test"
	PropertyDepthTest       = "Depth Test"
	PropertyBackfaceCulling = "Backface Culling"
	PropertyStencilTest     = "Stencil Test"
	PropertyClearColor      = "Clear Color"
	PropertyViewport        = "Viewport"
	PropertyScreenCleared   = "Screen Cleared"
)

// Observer receives the advisory diagnostics of a Graphics context. Implementations must not call back into
// the context.
type Observer interface {
	// PropertyUntouched reports a tracked render state property that was never set since the last check.
	// Only called when the context runs with debug tracking.
	//
	// Parameters:
	//   - property: one of the Property constants
	PropertyUntouched(property string)

	// UniformUnset reports a declared uniform that a draw used without it having been set this frame.
	// Only called when the context runs with debug tracking.
	//
	// Parameters:
	//   - shader: the program name
	//   - uniform: the uniform name
	UniformUnset(shader, uniform string)

	// IntegrityWarning reports a non-fatal geometry problem found before a shape is built.
	//
	// Parameters:
	//   - subject: the shape name
	//   - warning: the warning text
	IntegrityWarning(subject, warning string)

	// Diagnostic reports compiler output and uniform upload failures.
	//
	// Parameters:
	//   - subject: the program or resource name
	//   - message: the diagnostic text
	Diagnostic(subject, message string)
}

// NopObserver discards every diagnostic.
type NopObserver struct{}

func (NopObserver) PropertyUntouched(string)        {}
func (NopObserver) UniformUnset(string, string)     {}
func (NopObserver) IntegrityWarning(string, string) {}
func (NopObserver) Diagnostic(string, string)       {}

var _ Observer = NopObserver{}

// logObserver forwards diagnostics to a structured logger.
type logObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer that logs every diagnostic at warn level, and compiler diagnostics at
// error level.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - Observer: the observer
func NewLogObserver(logger *slog.Logger) Observer {
	return &logObserver{logger: logger}
}

func (o *logObserver) PropertyUntouched(property string) {
	o.logger.Warn(UntouchedMessage(property), "property", property)
}

func (o *logObserver) UniformUnset(shader, uniform string) {
	o.logger.Warn("uniform has not been set", "shader", shader, "uniform", uniform)
}

func (o *logObserver) IntegrityWarning(subject, warning string) {
	o.logger.Warn(warning, "shape", subject)
}

func (o *logObserver) Diagnostic(subject, message string) {
	o.logger.Error(message, "subject", subject)
}

// UntouchedMessage formats the warning for an untouched tracked property.
//
// Parameters:
//   - property: the property
//
// Returns:
//   - string: the warning
func UntouchedMessage(property string) string {
	if property == PropertyScreenCleared {
		return "Screen was not cleared. May result in unexpected behavior."
	}
	return fmt.Sprintf("%s has not been set. May result in unexpected behavior.", property)
}

// tracker records which tracked properties were touched since the last check. Checking reports the untouched
// ones and resets.
type tracker struct {
	enabled  bool
	observer Observer

	state  map[string]bool
	target map[string]bool
}

func newTracker(enabled bool, observer Observer) *tracker {
	t := &tracker{
		enabled:  enabled,
		observer: observer,
		state:    make(map[string]bool),
		target:   make(map[string]bool),
	}
	t.resetState()
	t.resetTarget()
	return t
}

var (
	stateProperties  = []string{PropertyBlendTest, PropertyDepthTest, PropertyBackfaceCulling, PropertyStencilTest}
	targetProperties = []string{PropertyClearColor, PropertyViewport, PropertyScreenCleared}
)

func (t *tracker) touch(property string) {
	if !t.enabled {
		return
	}
	if _, ok := t.state[property]; ok {
		t.state[property] = true
	} else {
		t.target[property] = true
	}
}

// checkState runs on a shader switch.
func (t *tracker) checkState() {
	if !t.enabled {
		return
	}
	for _, p := range stateProperties {
		if !t.state[p] {
			t.observer.PropertyUntouched(p)
		}
	}
	t.resetState()
}

// checkTarget runs on a render target switch.
func (t *tracker) checkTarget() {
	if !t.enabled {
		return
	}
	for _, p := range targetProperties {
		if !t.target[p] {
			t.observer.PropertyUntouched(p)
		}
	}
	t.resetTarget()
}

func (t *tracker) resetState() {
	for _, p := range stateProperties {
		t.state[p] = false
	}
}

func (t *tracker) resetTarget() {
	for _, p := range targetProperties {
		t.target[p] = false
	}
}
