package shader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// ProgramBuilderOption is a functional option applied to a program during construction via NewProgram.
type ProgramBuilderOption func(*program)

// WithPreProcessor sets the pre-processor that expands @oxy: annotations in both sources.
//
// Parameters:
//   - pp: the pre-processor, nil keeps the default
//
// Returns:
//   - ProgramBuilderOption: a function that applies the pre-processor option to a program
func WithPreProcessor(pp PreProcessor) ProgramBuilderOption {
	return func(p *program) {
		if pp != nil {
			p.pp = pp
		}
	}
}

// WithEntryPoints sets the entry point names of the two stages. Empty names keep vs_main and fs_main.
//
// Parameters:
//   - vertex: the vertex entry point
//   - fragment: the fragment entry point
//
// Returns:
//   - ProgramBuilderOption: a function that applies the entry point option to a program
func WithEntryPoints(vertex, fragment string) ProgramBuilderOption {
	return func(p *program) {
		p.vertexEntry = common.Coalesce(vertex, p.vertexEntry)
		p.fragmentEntry = common.Coalesce(fragment, p.fragmentEntry)
	}
}

// WithTracking enables tracking of which uniforms were set between resets.
//
// Parameters:
//   - enabled: true to track
//
// Returns:
//   - ProgramBuilderOption: a function that applies the tracking option to a program
func WithTracking(enabled bool) ProgramBuilderOption {
	return func(p *program) {
		p.tracking = enabled
	}
}

// WithUnsetReporter sets a callback invoked for every uniform found unset after a tracked draw.
//
// Parameters:
//   - fn: the callback receiving the program and uniform names
//
// Returns:
//   - ProgramBuilderOption: a function that applies the reporter option to a program
func WithUnsetReporter(fn func(program, uniform string)) ProgramBuilderOption {
	return func(p *program) {
		p.reporter = fn
	}
}

// NewProgram pre-processes, compiles, links and introspects a program from two stage sources. The sources may be
// the same string when both entry points live in one module.
//
// A stage that fails to compile, or a program that fails reflection, does not return an error: the program is
// returned unlinked and Diagnostics holds the log, which is also logged at error level.
//
// Parameters:
//   - r: the renderer that owns the program
//   - name: the program name, used as the debug label
//   - vertexSource: the WGSL source of the vertex stage
//   - fragmentSource: the WGSL source of the fragment stage
//   - options: functional options
//
// Returns:
//   - Program: the program
//   - error: an error if a source has a malformed @oxy: annotation
func NewProgram(r renderer.Renderer, name, vertexSource, fragmentSource string, options ...ProgramBuilderOption) (Program, error) {
	p := &program{
		r:             r,
		logger:        r.Logger(),
		name:          name,
		pp:            NewPreProcessor(),
		vertexEntry:   "vs_main",
		fragmentEntry: "fs_main",
		textures:      make(map[int]renderer.Handle),
		set:           make(map[string]bool),
		reported:      make(map[string]bool),
	}
	for _, opt := range options {
		opt(p)
	}

	vs, err := p.pp.Process(vertexSource)
	if err != nil {
		return nil, fmt.Errorf("program %q: vertex source: %w", name, err)
	}
	fs := vs
	if fragmentSource != vertexSource {
		if fs, err = p.pp.Process(fragmentSource); err != nil {
			return nil, fmt.Errorf("program %q: fragment source: %w", name, err)
		}
	}

	desc := renderer.ProgramDescriptor{
		Label:          name,
		VertexSource:   vs,
		FragmentSource: fs,
		VertexEntry:    p.vertexEntry,
		FragmentEntry:  p.fragmentEntry,
	}
	reflected, reflectErr := Reflect(desc)
	if reflectErr == nil {
		desc = reflected
	}
	p.link(desc)

	handle, log, compileErr := r.CreateProgram(desc)
	p.handle = handle

	var diag []string
	if log != "" {
		diag = append(diag, log)
	}
	if reflectErr != nil && compileErr == nil {
		diag = append(diag, "reflection: "+reflectErr.Error())
	}
	p.diagnostics = strings.Join(diag, "\n")
	p.linked = errors.Join(compileErr, reflectErr) == nil

	if !p.linked {
		p.logger.Error("program is not linked", "program", name, "diagnostics", p.diagnostics)
	} else {
		p.logger.Debug("linked program", "program", name, "attributes", len(desc.Attributes), "uniforms", len(desc.Uniforms), "textures", len(desc.Textures))
	}
	return p, nil
}

// NewDefaultProgram creates the engine's default program from DefaultSource.
//
// Parameters:
//   - r: the renderer that owns the program
//   - name: the program name
//   - options: functional options
//
// Returns:
//   - Program: the program
//   - error: an error if the default source fails pre-processing
func NewDefaultProgram(r renderer.Renderer, name string, options ...ProgramBuilderOption) (Program, error) {
	return NewProgram(r, name, DefaultSource, DefaultSource, options...)
}
