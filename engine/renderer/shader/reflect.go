package shader

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Bind group conventions of engine shaders.
const (
	uniformGroup = 0
	textureGroup = 1

	// uniformAlignment is the offset alignment of each uniform binding's region within the program's uniform block.
	uniformAlignment = 256
)

// moduleGlobal is a global variable together with the module that declares it.
type moduleGlobal struct {
	module *ir.Module
	global ir.GlobalVariable
}

// reflector accumulates the reflection of a program's two stages into a ProgramDescriptor.
type reflector struct {
	desc renderer.ProgramDescriptor
}

// Reflect parses both stages of a program with naga and fills in the descriptor's uniform block layout,
// texture units and vertex attributes. Stages sharing one source are parsed once.
//
// Uniform naming: members of a top-level uniform struct are named without the variable name ("m",
// "material.color", "lights[0].color"), nested struct members are joined with a dot, arrays of structs are
// expanded per element, and arrays of scalars, vectors or matrices are one "name[0]" entry carrying the
// element count and stride.
//
// Parameters:
//   - desc: a descriptor with sources and entry points set
//
// Returns:
//   - renderer.ProgramDescriptor: desc with the reflected fields replaced
//   - error: a parse error or an unsupported declaration
func Reflect(desc renderer.ProgramDescriptor) (renderer.ProgramDescriptor, error) {
	desc.VertexEntry = common.Coalesce(desc.VertexEntry, "vs_main")
	desc.FragmentEntry = common.Coalesce(desc.FragmentEntry, "fs_main")

	vs, err := lowerSource(desc.VertexSource)
	if err != nil {
		return desc, fmt.Errorf("vertex stage: %w", err)
	}
	fs := vs
	if desc.FragmentSource != desc.VertexSource {
		if fs, err = lowerSource(desc.FragmentSource); err != nil {
			return desc, fmt.Errorf("fragment stage: %w", err)
		}
	}

	r := &reflector{desc: desc}
	r.desc.UniformBindings = nil
	r.desc.Uniforms = nil
	r.desc.Textures = nil
	r.desc.Attributes = nil
	r.desc.UniformBlockSize = 0

	globals := collectGlobals(vs, fs)
	if err := r.uniformBlock(globals); err != nil {
		return desc, err
	}
	if err := r.textures(globals); err != nil {
		return desc, err
	}
	if err := r.attributes(vs); err != nil {
		return desc, err
	}
	if !hasEntry(fs, desc.FragmentEntry, ir.StageFragment) {
		return desc, fmt.Errorf("fragment stage: entry point %q not found", desc.FragmentEntry)
	}
	return r.desc, nil
}

func lowerSource(src string) (*ir.Module, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, err
	}
	return naga.LowerWithSource(ast, src)
}

func hasEntry(m *ir.Module, name string, stage ir.ShaderStage) bool {
	for _, ep := range m.EntryPoints {
		if ep.Name == name && ep.Stage == stage {
			return true
		}
	}
	return false
}

// collectGlobals returns the bound globals of both modules ordered by group and binding. A binding declared
// by both stages is kept once.
func collectGlobals(modules ...*ir.Module) []moduleGlobal {
	seen := make(map[ir.ResourceBinding]bool)
	var out []moduleGlobal
	for i, m := range modules {
		if i > 0 && m == modules[i-1] {
			continue
		}
		for _, g := range m.GlobalVariables {
			if g.Binding == nil || seen[*g.Binding] {
				continue
			}
			seen[*g.Binding] = true
			out = append(out, moduleGlobal{module: m, global: g})
		}
	}
	slices.SortStableFunc(out, func(a, b moduleGlobal) int {
		if c := cmp.Compare(a.global.Binding.Group, b.global.Binding.Group); c != 0 {
			return c
		}
		return cmp.Compare(a.global.Binding.Binding, b.global.Binding.Binding)
	})
	return out
}

// uniformBlock lays out every group 0 uniform binding as a 256 byte aligned region of one block.
func (r *reflector) uniformBlock(globals []moduleGlobal) error {
	end := 0
	for _, mg := range globals {
		g := mg.global
		if g.Space != ir.SpaceUniform {
			continue
		}
		if g.Binding.Group != uniformGroup {
			return fmt.Errorf("uniform %q: uniform buffers must be in group %d, found group %d", g.Name, uniformGroup, g.Binding.Group)
		}
		size := int(ir.TypeSize(mg.module, g.Type))
		offset := alignUp(end, uniformAlignment)
		r.desc.UniformBindings = append(r.desc.UniformBindings, renderer.UniformBinding{
			Binding: int(g.Binding.Binding),
			Name:    g.Name,
			Offset:  offset,
			Size:    size,
		})
		end = offset + size

		// members of a top-level struct are addressed without the variable name
		if st, ok := mg.module.Types[g.Type].Inner.(ir.StructType); ok {
			for _, member := range st.Members {
				if err := r.flatten(mg.module, member.Type, member.Name, offset+int(member.Offset)); err != nil {
					return err
				}
			}
			continue
		}
		if err := r.flatten(mg.module, g.Type, g.Name, offset); err != nil {
			return err
		}
	}
	r.desc.UniformBlockSize = end
	return nil
}

func (r *reflector) flatten(m *ir.Module, th ir.TypeHandle, name string, offset int) error {
	switch inner := m.Types[th].Inner.(type) {
	case ir.StructType:
		for _, member := range inner.Members {
			if err := r.flatten(m, member.Type, name+"."+member.Name, offset+int(member.Offset)); err != nil {
				return err
			}
		}
		return nil
	case ir.ArrayType:
		if inner.Size.Constant == nil {
			return fmt.Errorf("uniform %q: runtime-sized arrays are not supported in uniform buffers", name)
		}
		count := int(*inner.Size.Constant)
		switch m.Types[inner.Base].Inner.(type) {
		case ir.StructType, ir.ArrayType:
			for i := range count {
				elem := fmt.Sprintf("%s[%d]", name, i)
				if err := r.flatten(m, inner.Base, elem, offset+i*int(inner.Stride)); err != nil {
					return err
				}
			}
			return nil
		}
		typ, size, err := uniformType(m, inner.Base)
		if err != nil {
			return fmt.Errorf("uniform %q: %w", name, err)
		}
		r.desc.Uniforms = append(r.desc.Uniforms, renderer.UniformInfo{
			Name:     name + "[0]",
			Type:     typ,
			Offset:   offset,
			Size:     size,
			ArrayLen: count,
			Stride:   int(inner.Stride),
		})
		return nil
	}

	typ, size, err := uniformType(m, th)
	if err != nil {
		return fmt.Errorf("uniform %q: %w", name, err)
	}
	r.desc.Uniforms = append(r.desc.Uniforms, renderer.UniformInfo{Name: name, Type: typ, Offset: offset, Size: size})
	return nil
}

// uniformType maps a scalar, vector or matrix type to its UniformType and byte size.
func uniformType(m *ir.Module, th ir.TypeHandle) (renderer.UniformType, int, error) {
	size := int(ir.TypeSize(m, th))
	switch t := m.Types[th].Inner.(type) {
	case ir.ScalarType:
		switch t.Kind {
		case ir.ScalarFloat:
			return renderer.UniformFloat, size, nil
		case ir.ScalarSint:
			return renderer.UniformInt, size, nil
		case ir.ScalarUint:
			return renderer.UniformUint, size, nil
		case ir.ScalarBool:
			return renderer.UniformBool, size, nil
		}
	case ir.VectorType:
		float := t.Scalar.Kind == ir.ScalarFloat
		switch {
		case t.Size == ir.Vec2 && float:
			return renderer.UniformVec2, size, nil
		case t.Size == ir.Vec3 && float:
			return renderer.UniformVec3, size, nil
		case t.Size == ir.Vec4 && float:
			return renderer.UniformVec4, size, nil
		case t.Size == ir.Vec2:
			return renderer.UniformIVec2, size, nil
		case t.Size == ir.Vec3:
			return renderer.UniformIVec3, size, nil
		case t.Size == ir.Vec4:
			return renderer.UniformIVec4, size, nil
		}
	case ir.MatrixType:
		switch {
		case t.Columns == ir.Vec3 && t.Rows == ir.Vec3:
			return renderer.UniformMat3, size, nil
		case t.Columns == ir.Vec4 && t.Rows == ir.Vec4:
			return renderer.UniformMat4, size, nil
		}
		return renderer.UniformUnknown, size, fmt.Errorf("unsupported matrix %dx%d", t.Columns, t.Rows)
	}
	return renderer.UniformUnknown, size, fmt.Errorf("unsupported type")
}

// textures assigns texture units in binding order to the group 1 textures and pairs each with a sampler:
// the sampler named "<texture>Sampler" if declared, otherwise the next unclaimed sampler after the texture.
func (r *reflector) textures(globals []moduleGlobal) error {
	var images, samplers []moduleGlobal
	for _, mg := range globals {
		if mg.global.Space != ir.SpaceHandle {
			continue
		}
		switch mg.module.Types[mg.global.Type].Inner.(type) {
		case ir.ImageType:
			images = append(images, mg)
		case ir.SamplerType:
			samplers = append(samplers, mg)
		default:
			continue
		}
		if mg.global.Binding.Group != textureGroup {
			return fmt.Errorf("texture binding %q: textures and samplers must be in group %d, found group %d", mg.global.Name, textureGroup, mg.global.Binding.Group)
		}
	}

	claimed := make(map[uint32]bool)
	pick := func(image ir.GlobalVariable) (ir.GlobalVariable, bool) {
		for _, s := range samplers {
			if s.global.Name == image.Name+"Sampler" && !claimed[s.global.Binding.Binding] {
				return s.global, true
			}
		}
		for _, s := range samplers {
			if s.global.Binding.Binding > image.Binding.Binding && !claimed[s.global.Binding.Binding] {
				return s.global, true
			}
		}
		return ir.GlobalVariable{}, false
	}

	for unit, mg := range images {
		img := mg.module.Types[mg.global.Type].Inner.(ir.ImageType)
		if img.Arrayed || img.Multisampled || img.Class == ir.ImageClassStorage || img.Class == ir.ImageClassExternal {
			return fmt.Errorf("texture %q: only plain sampled textures are supported", mg.global.Name)
		}
		smp, ok := pick(mg.global)
		if !ok {
			return fmt.Errorf("texture %q: no sampler declared for it", mg.global.Name)
		}
		claimed[smp.Binding.Binding] = true

		tb := renderer.TextureBinding{
			Name:           mg.global.Name,
			Unit:           unit,
			Binding:        int(mg.global.Binding.Binding),
			SamplerBinding: int(smp.Binding.Binding),
			SampleType:     common.DataTypeFloat,
		}
		typ := renderer.UniformSampler2D
		switch img.Dim {
		case ir.Dim1D:
			tb.Dimension, typ = renderer.TextureDimension1D, renderer.UniformSampler1D
		case ir.Dim2D:
			tb.Dimension = renderer.TextureDimension2D
		case ir.Dim3D:
			tb.Dimension, typ = renderer.TextureDimension3D, renderer.UniformSampler3D
		case ir.DimCube:
			tb.Dimension, tb.Cube, typ = renderer.TextureDimension2D, true, renderer.UniformSamplerCube
		}
		if img.Class == ir.ImageClassSampled && (img.SampledKind == ir.ScalarSint || img.SampledKind == ir.ScalarUint) {
			tb.SampleType = common.DataTypeInt
		}
		r.desc.Textures = append(r.desc.Textures, tb)
		r.desc.Uniforms = append(r.desc.Uniforms, renderer.UniformInfo{Name: tb.Name, Type: typ})
	}
	return nil
}

// attributes reads the vertex inputs of the vertex entry point: arguments with a location, and members with a
// location of struct arguments.
func (r *reflector) attributes(m *ir.Module) error {
	idx := slices.IndexFunc(m.EntryPoints, func(ep ir.EntryPoint) bool {
		return ep.Name == r.desc.VertexEntry && ep.Stage == ir.StageVertex
	})
	if idx < 0 {
		return fmt.Errorf("vertex stage: entry point %q not found", r.desc.VertexEntry)
	}

	add := func(name string, th ir.TypeHandle, binding *ir.Binding) {
		if binding == nil {
			return
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return
		}
		r.desc.Attributes = append(r.desc.Attributes, renderer.AttributeInfo{
			Name:       name,
			Location:   int(loc.Location),
			Components: components(m, th),
		})
	}

	for _, arg := range m.EntryPoints[idx].Function.Arguments {
		if st, ok := m.Types[arg.Type].Inner.(ir.StructType); ok && arg.Binding == nil {
			for _, member := range st.Members {
				add(member.Name, member.Type, member.Binding)
			}
			continue
		}
		add(arg.Name, arg.Type, arg.Binding)
	}
	slices.SortFunc(r.desc.Attributes, func(a, b renderer.AttributeInfo) int {
		return cmp.Compare(a.Location, b.Location)
	})
	return nil
}

func components(m *ir.Module, th ir.TypeHandle) int {
	if v, ok := m.Types[th].Inner.(ir.VectorType); ok {
		return int(v.Size)
	}
	return 1
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
