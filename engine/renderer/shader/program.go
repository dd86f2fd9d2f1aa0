package shader

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrTypeMismatch is returned when a value cannot be written to a uniform of the reflected type.
var ErrTypeMismatch = errors.New("uniform type mismatch")

// SamplerSlot is the location and fixed texture unit of a texture uniform.
type SamplerSlot struct {
	Location int
	Unit     int
}

// slot is one addressable uniform. Locations are indices into the program's slot table.
type slot struct {
	name   string
	typ    renderer.UniformType
	offset int
	size   int

	// declared is the reflected name this slot reports under when tracking.
	declared string
}

type arrayKey struct {
	base  string
	index int
}

// program is the implementation of the Program interface.
type program struct {
	r      renderer.Renderer
	logger *slog.Logger

	name        string
	handle      renderer.Handle
	desc        renderer.ProgramDescriptor
	linked      bool
	diagnostics string

	attributes map[string]int
	slots      []slot
	locations  map[string]int
	arrays     map[arrayKey]int
	samplers   map[string]SamplerSlot

	block    []byte
	textures map[int]renderer.Handle

	// Pre-creation config collected from builder options
	pp            PreProcessor
	vertexEntry   string
	fragmentEntry string

	tracking bool
	set      map[string]bool
	reported map[string]bool
	reporter func(program, uniform string)
}

// Program is a linked vertex and fragment stage pair together with the introspection of its inputs.
//
// Introspection maps attribute names to slots, uniform names to locations and texture uniforms to a
// (location, unit) pair. Texture units are assigned 0, 1, 2... in discovery order when the program is
// created and never change. The maps are immutable after creation.
//
// Uniform values live in a host-side block that is handed to the renderer with every draw, so values persist
// across draws until overwritten.
type Program interface {
	// Name returns the name the program was created with.
	//
	// Returns:
	//   - string: the program name
	Name() string

	// Handle returns the renderer handle owning the driver program.
	//
	// Returns:
	//   - renderer.Handle: the program handle
	Handle() renderer.Handle

	// Linked reports whether both stages compiled and linked.
	//
	// Returns:
	//   - bool: true when the program can draw
	Linked() bool

	// Diagnostics returns the compile, link and reflection log. Empty for a clean build.
	//
	// Returns:
	//   - string: the diagnostic text
	Diagnostics() string

	// Descriptor returns the processed sources and reflection handed to the renderer.
	//
	// Returns:
	//   - renderer.ProgramDescriptor: the program descriptor
	Descriptor() renderer.ProgramDescriptor

	// AttributeLocation returns the vertex slot of an attribute.
	//
	// Parameters:
	//   - name: the attribute name
	//
	// Returns:
	//   - int: the slot, or -1 if the program declares no such attribute
	AttributeLocation(name string) int

	// UniformLocation returns the location of a uniform. Array elements are addressed as "name[i]" and members
	// of struct arrays as "name[i].member".
	//
	// Parameters:
	//   - name: the flattened uniform name
	//
	// Returns:
	//   - int: the location, or -1 if the program declares no such uniform
	UniformLocation(name string) int

	// ArrayUniformLocation returns the location of one element of an array uniform family.
	//
	// Parameters:
	//   - base: the family name without the subscript
	//   - index: the element index
	//
	// Returns:
	//   - int: the location, or -1 if the family or index does not exist
	ArrayUniformLocation(base string, index int) int

	// Sampler returns the location and texture unit of a texture uniform.
	//
	// Parameters:
	//   - name: the texture variable name
	//
	// Returns:
	//   - SamplerSlot: the location and unit
	//   - bool: false if the program declares no such texture
	Sampler(name string) (SamplerSlot, bool)

	// Uniforms returns the declared uniform names in declaration order, textures included.
	//
	// Returns:
	//   - []string: the uniform names
	Uniforms() []string

	// Bind makes the program current and rebinds the textures set on it.
	Bind()

	// Unbind restores no program.
	Unbind()

	// SetUniform writes a value to a uniform by name. Unknown names are ignored.
	//
	// Accepted values: float32, float64 and int for floats; int, int32, uint32 and bool for integers and bools;
	// mgl32 vectors, fixed size float32 arrays or []float32 for vectors; mgl32.Mat3 and mgl32.Mat4 for matrices.
	//
	// Parameters:
	//   - name: the flattened uniform name
	//   - value: the value to write
	//
	// Returns:
	//   - error: ErrTypeMismatch if the value does not fit the uniform's type
	SetUniform(name string, value any) error

	// SetUniformAt writes a value to a uniform by location. Location -1 is ignored.
	//
	// Parameters:
	//   - location: the uniform location
	//   - value: the value to write, as for SetUniform
	//
	// Returns:
	//   - error: ErrTypeMismatch if the value does not fit the uniform's type
	SetUniformAt(location int, value any) error

	// SetArrayUniform writes consecutive elements of an array uniform family starting at index 0. Elements past
	// the family length are dropped.
	//
	// Parameters:
	//   - base: the family name without the subscript
	//   - values: a slice of element values ([]float32, []int32, []int, []mgl32.Vec2/3/4, []mgl32.Mat3/4)
	//
	// Returns:
	//   - error: ErrTypeMismatch if values is not a supported slice or an element does not fit
	SetArrayUniform(base string, values any) error

	// SetTexture binds a texture to the unit assigned to a texture uniform. Unknown names are ignored.
	//
	// Parameters:
	//   - name: the texture variable name
	//   - tex: the texture handle, nil unbinds the unit
	SetTexture(name string, tex renderer.Handle)

	// Draw draws a vertex array with this program's uniform block. The program must be bound.
	//
	// Parameters:
	//   - vao: the vertex array handle
	//   - count: the number of elements to draw
	//
	// Returns:
	//   - error: an error from the renderer
	Draw(vao renderer.Handle, count int) error

	// SetTracking enables or disables tracking of which uniforms were set.
	//
	// Parameters:
	//   - enabled: true to track
	SetTracking(enabled bool)

	// UnsetUniforms returns the declared uniforms not set since the last ResetTracking.
	//
	// Returns:
	//   - []string: the uniform names in declaration order
	UnsetUniforms() []string

	// ResetTracking clears the set and reported state. Called once per frame.
	ResetTracking()

	// Release drops the program's reference to its handle.
	Release()
}

var _ Program = &program{}

func (p *program) link(desc renderer.ProgramDescriptor) {
	p.desc = desc
	p.attributes = make(map[string]int, len(desc.Attributes))
	p.locations = make(map[string]int, len(desc.Uniforms))
	p.arrays = make(map[arrayKey]int)
	p.samplers = make(map[string]SamplerSlot, len(desc.Textures))
	p.block = make([]byte, desc.UniformBlockSize)

	for _, a := range desc.Attributes {
		p.attributes[a.Name] = a.Location
	}

	add := func(s slot) int {
		loc := len(p.slots)
		p.slots = append(p.slots, s)
		p.locations[s.name] = loc
		return loc
	}
	for _, u := range desc.Uniforms {
		if u.Type.IsSampler() {
			loc := add(slot{name: u.Name, typ: u.Type, offset: -1, declared: u.Name})
			for _, tb := range desc.Textures {
				if tb.Name == u.Name {
					p.samplers[u.Name] = SamplerSlot{Location: loc, Unit: tb.Unit}
				}
			}
			continue
		}
		if u.ArrayLen > 0 {
			base := strings.TrimSuffix(u.Name, "[0]")
			for i := range u.ArrayLen {
				loc := add(slot{
					name:     fmt.Sprintf("%s[%d]", base, i),
					typ:      u.Type,
					offset:   u.Offset + i*u.Stride,
					size:     u.Size,
					declared: u.Name,
				})
				p.arrays[arrayKey{base: base, index: i}] = loc
			}
			continue
		}
		add(slot{name: u.Name, typ: u.Type, offset: u.Offset, size: u.Size, declared: u.Name})
	}
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Handle() renderer.Handle {
	return p.handle
}

func (p *program) Linked() bool {
	return p.linked
}

func (p *program) Diagnostics() string {
	return p.diagnostics
}

func (p *program) Descriptor() renderer.ProgramDescriptor {
	return p.desc
}

func (p *program) AttributeLocation(name string) int {
	if loc, ok := p.attributes[name]; ok {
		return loc
	}
	return -1
}

func (p *program) UniformLocation(name string) int {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	return -1
}

func (p *program) ArrayUniformLocation(base string, index int) int {
	if loc, ok := p.arrays[arrayKey{base: base, index: index}]; ok {
		return loc
	}
	return -1
}

func (p *program) Sampler(name string) (SamplerSlot, bool) {
	s, ok := p.samplers[name]
	return s, ok
}

func (p *program) Uniforms() []string {
	names := make([]string, 0, len(p.desc.Uniforms))
	for _, u := range p.desc.Uniforms {
		names = append(names, u.Name)
	}
	return names
}

func (p *program) Bind() {
	p.r.UseProgram(p.handle)
	for unit, tex := range p.textures {
		p.r.BindTexture(unit, tex)
	}
}

func (p *program) Unbind() {
	p.r.UseProgram(nil)
}

func (p *program) SetUniform(name string, value any) error {
	return p.SetUniformAt(p.UniformLocation(name), value)
}

func (p *program) SetUniformAt(location int, value any) error {
	if location < 0 || location >= len(p.slots) {
		return nil
	}
	s := p.slots[location]
	if s.typ.IsSampler() {
		return fmt.Errorf("%s: %w: texture uniforms are set with SetTexture", s.name, ErrTypeMismatch)
	}
	if err := writeUniform(p.block, s, value); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	p.mark(s.declared)
	return nil
}

func (p *program) SetArrayUniform(base string, values any) error {
	elems, ok := elements(values)
	if !ok {
		return fmt.Errorf("%s: %w: %T is not a supported slice", base, ErrTypeMismatch, values)
	}
	for i, v := range elems {
		loc := p.ArrayUniformLocation(base, i)
		if loc < 0 {
			break
		}
		if err := p.SetUniformAt(loc, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *program) SetTexture(name string, tex renderer.Handle) {
	s, ok := p.samplers[name]
	if !ok {
		return
	}
	// Bound textures are retained until replaced or the program is released.
	if old, held := p.textures[s.Unit]; !held || old != tex {
		if tex == nil {
			delete(p.textures, s.Unit)
		} else {
			tex.Retain()
			p.textures[s.Unit] = tex
		}
		if held {
			old.Release()
		}
	}
	p.r.BindTexture(s.Unit, tex)
	p.mark(name)
}

func (p *program) Draw(vao renderer.Handle, count int) error {
	if !p.linked {
		return fmt.Errorf("program %q: %w", p.name, renderer.ErrNotLinked)
	}
	err := p.r.Draw(renderer.DrawCall{VertexArray: vao, Count: count, Uniforms: p.block})
	if p.tracking {
		p.report()
	}
	if err != nil {
		return fmt.Errorf("program %q: %w", p.name, err)
	}
	return nil
}

func (p *program) SetTracking(enabled bool) {
	p.tracking = enabled
}

func (p *program) mark(declared string) {
	if p.tracking {
		p.set[declared] = true
	}
}

func (p *program) UnsetUniforms() []string {
	var unset []string
	for _, u := range p.desc.Uniforms {
		if !p.set[u.Name] {
			unset = append(unset, u.Name)
		}
	}
	return unset
}

// report surfaces uniforms never set this frame. Each is reported once until the next ResetTracking.
func (p *program) report() {
	for _, name := range p.UnsetUniforms() {
		if p.reported[name] {
			continue
		}
		p.reported[name] = true
		p.logger.Warn("uniform has not been set", "program", p.name, "uniform", name)
		if p.reporter != nil {
			p.reporter(p.name, name)
		}
	}
}

func (p *program) ResetTracking() {
	clear(p.set)
	clear(p.reported)
}

func (p *program) Release() {
	p.handle.Release()
	if !p.handle.Released() {
		return
	}
	for unit, tex := range p.textures {
		tex.Release()
		delete(p.textures, unit)
	}
}

// writeUniform encodes value into block at the slot's offset using the slot's reflected type.
func writeUniform(block []byte, s slot, value any) error {
	mismatch := func() error {
		return fmt.Errorf("%w: cannot write %T to %s", ErrTypeMismatch, value, uniformTypeName(s.typ))
	}
	switch s.typ {
	case renderer.UniformFloat:
		f, ok := toFloat(value)
		if !ok {
			return mismatch()
		}
		common.PutFloat32s(block, s.offset, f)
	case renderer.UniformInt, renderer.UniformUint, renderer.UniformBool:
		i, ok := toInt(value)
		if !ok {
			return mismatch()
		}
		common.PutInt32(block, s.offset, i)
	case renderer.UniformVec2, renderer.UniformVec3, renderer.UniformVec4:
		v, ok := toFloats(value, vectorLen(s.typ))
		if !ok {
			return mismatch()
		}
		common.PutFloat32s(block, s.offset, v...)
	case renderer.UniformIVec2, renderer.UniformIVec3, renderer.UniformIVec4:
		v, ok := toInts(value, vectorLen(s.typ))
		if !ok {
			return mismatch()
		}
		for i, c := range v {
			common.PutInt32(block, s.offset+4*i, c)
		}
	case renderer.UniformMat3:
		m, ok := value.(mgl32.Mat3)
		if !ok {
			return mismatch()
		}
		// columns of a uniform mat3x3 are padded to 16 bytes
		for c := range 3 {
			common.PutFloat32s(block, s.offset+16*c, m[c*3:c*3+3]...)
		}
	case renderer.UniformMat4:
		m, ok := value.(mgl32.Mat4)
		if !ok {
			return mismatch()
		}
		common.PutFloat32s(block, s.offset, m[:]...)
	default:
		return mismatch()
	}
	return nil
}

func vectorLen(t renderer.UniformType) int {
	switch t {
	case renderer.UniformVec2, renderer.UniformIVec2:
		return 2
	case renderer.UniformVec3, renderer.UniformIVec3:
		return 3
	default:
		return 4
	}
}

func toFloat(value any) (float32, bool) {
	switch v := value.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	case int:
		return float32(v), true
	}
	return 0, false
}

func toInt(value any) (int32, bool) {
	switch v := value.(type) {
	case int:
		return int32(v), true
	case int32:
		return v, true
	case uint32:
		return int32(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toFloats(value any, n int) ([]float32, bool) {
	var out []float32
	switch v := value.(type) {
	case mgl32.Vec2:
		out = v[:]
	case mgl32.Vec3:
		out = v[:]
	case mgl32.Vec4:
		out = v[:]
	case [2]float32:
		out = v[:]
	case [3]float32:
		out = v[:]
	case [4]float32:
		out = v[:]
	case []float32:
		out = v
	default:
		return nil, false
	}
	return out, len(out) == n
}

func toInts(value any, n int) ([]int32, bool) {
	var out []int32
	switch v := value.(type) {
	case [2]int32:
		out = v[:]
	case [3]int32:
		out = v[:]
	case [4]int32:
		out = v[:]
	case []int32:
		out = v
	default:
		return nil, false
	}
	return out, len(out) == n
}

func elements(values any) ([]any, bool) {
	switch v := values.(type) {
	case []float32:
		return each(v), true
	case []int32:
		return each(v), true
	case []int:
		return each(v), true
	case []mgl32.Vec2:
		return each(v), true
	case []mgl32.Vec3:
		return each(v), true
	case []mgl32.Vec4:
		return each(v), true
	case []mgl32.Mat3:
		return each(v), true
	case []mgl32.Mat4:
		return each(v), true
	}
	return nil, false
}

func each[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func uniformTypeName(t renderer.UniformType) string {
	switch t {
	case renderer.UniformFloat:
		return "f32"
	case renderer.UniformInt:
		return "i32"
	case renderer.UniformUint:
		return "u32"
	case renderer.UniformBool:
		return "bool"
	case renderer.UniformVec2:
		return "vec2<f32>"
	case renderer.UniformVec3:
		return "vec3<f32>"
	case renderer.UniformVec4:
		return "vec4<f32>"
	case renderer.UniformIVec2:
		return "vec2<i32>"
	case renderer.UniformIVec3:
		return "vec3<i32>"
	case renderer.UniformIVec4:
		return "vec4<i32>"
	case renderer.UniformMat3:
		return "mat3x3<f32>"
	case renderer.UniformMat4:
		return "mat4x4<f32>"
	default:
		return "texture"
	}
}
