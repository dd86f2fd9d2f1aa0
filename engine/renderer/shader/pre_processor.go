// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with injected struct source or
// generated uniform declarations, and collects the declarations for inspection.
//
// The pre-processor maintains two registries:
//   - structRegistry: maps AnnotationArg keys to WGSL struct sources, their resolved
//     type names and the struct keys they depend on.
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"strings"
)

// registryEntry pairs a WGSL struct source string with the resolved WGSL type name used in
// generated @group/@binding declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations (e.g. "Transforms", "Scene").
	Type string

	// Requires lists struct keys that must be injected before this one.
	Requires []AnnotationArg
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates AnnotationTypeBindingGroup annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with injected struct sources or generated declarations.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and pre-processes it by replacing
	// @oxy: annotations with their corresponding WGSL output. @oxy:include annotations
	// are replaced with the struct source and its dependencies, skipping structs already
	// injected by this call. @oxy:group annotations are replaced with generated
	// @group/@binding variable declarations, injecting the struct first if needed.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed or references an unknown type
	Process(source string) (string, error)

	// Declarations returns the AnnotationTypeBindingGroup annotations collected during the
	// most recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation

	// Register adds or replaces a struct type usable by @oxy:include and @oxy:group.
	//
	// Parameters:
	//   - key: the annotation argument naming the struct
	//   - typeName: the WGSL type name the source declares
	//   - source: the WGSL struct definition
	//   - requires: struct keys injected before this one
	Register(key AnnotationArg, typeName, source string, requires ...AnnotationArg)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the engine's struct types and address
// space mappings pre-populated.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgTransforms: {Source: GPUTransformsSource, Type: "Transforms"},
			AnnotationArgMaterial:   {Source: GPUMaterialSource, Type: "Material"},
			AnnotationArgFont:       {Source: GPUFontSource, Type: "Font"},
			AnnotationArgLight:      {Source: GPULightSource, Type: "Light"},
			AnnotationArgScene: {
				Source:   GPUSceneSource,
				Type:     "Scene",
				Requires: []AnnotationArg{AnnotationArgMaterial, AnnotationArgFont, AnnotationArgLight},
			},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform: "var<uniform>",
		},
	}
}

func (p *preProcessor) Register(key AnnotationArg, typeName, source string, requires ...AnnotationArg) {
	p.structRegistry[key] = registryEntry{Source: source, Type: typeName, Requires: requires}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)

	var include func(key AnnotationArg, line int, chain []AnnotationArg) error
	include = func(key AnnotationArg, line int, chain []AnnotationArg) error {
		if included[key] {
			return nil
		}
		for _, k := range chain {
			if k == key {
				return fmt.Errorf("line %d: include cycle through %q", line, key)
			}
		}
		entry, ok := p.structRegistry[key]
		if !ok {
			return fmt.Errorf("line %d: unknown struct type %q", line, key)
		}
		for _, dep := range entry.Requires {
			if err := include(dep, line, append(chain[:len(chain):len(chain)], key)); err != nil {
				return err
			}
		}
		included[key] = true
		out = append(out, strings.TrimRight(entry.Source, "\n"))
		return nil
	}

	// iterate through each line of the source and attempt to parse it as an annotation, if it's an annotation replace it with the corresponding source from the registry, otherwise keep the line as is.
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if err := include(a.Args[0], i+1, nil); err != nil {
				return "", fmt.Errorf("@oxy include: %w", err)
			}
		case AnnotationTypeBindingGroup:
			entry, ok := p.structRegistry[a.Args[2]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", i+1, a.Args[2])
			}
			if err := include(a.Args[2], i+1, nil); err != nil {
				return "", fmt.Errorf("@oxy group: %w", err)
			}
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
