package shape

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

// Attribute slots the shape streams are bound to. They match the vertex inputs of the default program.
const (
	SlotPosition = 0
	SlotNormal   = 1
	SlotTexCoord = 2
)

// State is the build state of a shape.
type State int

const (
	// StatePending means the geometry lives only in host staging storage.
	StatePending State = iota

	// StateBuilt means the geometry is GPU resident and the staging storage has been cleared.
	StateBuilt
)

func (s State) String() string {
	if s == StateBuilt {
		return "built"
	}
	return "pending"
}

// Context is what a shape needs from the orchestrator that draws it.
type Context interface {
	// Renderer returns the renderer used to build the shape.
	Renderer() renderer.Renderer

	// Transform returns the current model transform.
	Transform() mgl32.Mat4

	// SetTransform replaces the model transform.
	SetTransform(m mgl32.Mat4)

	// PushTransform right-multiplies the model transform by m.
	PushTransform(m mgl32.Mat4)

	// DrawShape draws a registered shape by name.
	DrawShape(name string) error

	// DrawElements draws count elements of a vertex array with the active program.
	DrawElements(vao renderer.Handle, count int) error
}

// shape is the implementation of the Shape interface.
type shape struct {
	label  string
	alias  string
	layout pipeline.Topology

	positions []float32
	normals   []float32
	texCoords []float32
	faces     []uint32

	indexed  bool
	state    State
	elements int
	vao      renderer.Handle

	position mgl32.Vec3
	scale    mgl32.Vec3
	rotation mgl32.Quat
}

// Shape is a geometry buffer: position, normal and texture coordinate streams with an optional index list,
// assembled with a fixed layout. It starts pending in host memory and becomes GPU resident on Build, which
// happens implicitly on the first Draw. Building clears the staging storage; adding data to a built shape
// makes it pending again and the next build replaces the GPU geometry.
//
// A shape also carries a local transform composed as translate · rotate · scale.
//
// A shape created with NewAlias holds no geometry. It is built from the start and draws the registered shape
// of that name under its own transform.
type Shape interface {
	// Label returns the debug label of the shape.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Alias returns the registry name this shape redirects to, or "" for a geometry shape.
	//
	// Returns:
	//   - string: the aliased name
	Alias() string

	// Layout returns how vertices are assembled into triangles.
	//
	// Returns:
	//   - pipeline.Topology: triangle list, strip or fan
	Layout() pipeline.Topology

	// State returns whether the shape is pending or built.
	//
	// Returns:
	//   - State: the build state
	State() State

	// Indexed reports whether the shape draws through an index list.
	//
	// Returns:
	//   - bool: true once a face has been supplied
	Indexed() bool

	// ElementCount returns the number of elements a draw consumes: the index count when indexed, else the
	// vertex count. It is only meaningful once built.
	//
	// Returns:
	//   - int: the element count
	ElementCount() int

	// VertexArray returns the GPU vertex array, or nil while pending or for an alias.
	//
	// Returns:
	//   - renderer.Handle: the vertex array
	VertexArray() renderer.Handle

	// AddPosition appends one vertex position.
	AddPosition(x, y, z float32)

	// AddPositions appends positions packed as x, y, z triples.
	AddPositions(positions []float32)

	// AddNormal appends one vertex normal.
	AddNormal(x, y, z float32)

	// AddNormals appends normals packed as x, y, z triples.
	AddNormals(normals []float32)

	// AddTextureCoordinate appends one texture coordinate.
	AddTextureCoordinate(s, t float32)

	// AddTextureCoordinates appends texture coordinates packed as s, t pairs.
	AddTextureCoordinates(texCoords []float32)

	// AddVertex appends a position, normal and texture coordinate together.
	AddVertex(x, y, z, nx, ny, nz, s, t float32)

	// AddVertices appends interleaved vertices, 8 floats each: position, normal, texture coordinate.
	AddVertices(vertices []float32)

	// AddFace appends one triangle of vertex indices and makes the shape indexed.
	AddFace(a, b, c uint32)

	// AddFaces appends triangles packed as index triples.
	AddFaces(faces []uint32)

	// IntegrityWarnings checks the staged streams for count mismatches and layout divisibility.
	// The checks never block a build.
	//
	// Returns:
	//   - []string: one message per failed check, empty when the staged data is consistent
	IntegrityWarnings() []string

	// Build uploads the staged streams into vertex buffers bound to SlotPosition, SlotNormal and SlotTexCoord,
	// uploads the index list if indexed, records the element count and clears the staging storage.
	// Building a built shape or an alias does nothing.
	//
	// Parameters:
	//   - r: the renderer that allocates the GPU objects
	//
	// Returns:
	//   - error: an error if an allocation fails, the shape stays pending
	Build(r renderer.Renderer) error

	// Draw builds the shape if pending, pushes its model matrix onto the context transform, draws, and
	// restores the prior transform.
	//
	// Parameters:
	//   - ctx: the orchestrator drawing the shape
	//
	// Returns:
	//   - error: a build or draw error
	Draw(ctx Context) error

	// Position returns the local translation.
	Position() mgl32.Vec3

	// SetPosition replaces the local translation.
	SetPosition(p mgl32.Vec3)

	// Translate adds to the local translation.
	Translate(delta mgl32.Vec3)

	// ScaleFactor returns the local per-axis scale.
	ScaleFactor() mgl32.Vec3

	// SetScale replaces the local per-axis scale.
	SetScale(s mgl32.Vec3)

	// Scale multiplies the local per-axis scale.
	Scale(s mgl32.Vec3)

	// Rotation returns the local rotation.
	Rotation() mgl32.Quat

	// SetRotation replaces the local rotation with angle radians about axis. A zero axis is ignored.
	SetRotation(angle float32, axis mgl32.Vec3)

	// SetRotationQuat replaces the local rotation. A zero quaternion is ignored.
	SetRotationQuat(q mgl32.Quat)

	// Rotate applies a further rotation of angle radians about axis on top of the current one. A zero axis is
	// ignored.
	Rotate(angle float32, axis mgl32.Vec3)

	// ModelMatrix returns translate · rotate · scale.
	ModelMatrix() mgl32.Mat4

	// Release frees the GPU geometry. The shape becomes pending with empty staging storage.
	Release()
}

var _ Shape = &shape{}

func (s *shape) Label() string {
	return s.label
}

func (s *shape) Alias() string {
	return s.alias
}

func (s *shape) Layout() pipeline.Topology {
	return s.layout
}

func (s *shape) State() State {
	return s.state
}

func (s *shape) Indexed() bool {
	return s.indexed
}

func (s *shape) ElementCount() int {
	return s.elements
}

func (s *shape) VertexArray() renderer.Handle {
	return s.vao
}

// stage marks a built geometry shape pending again before new data is appended.
func (s *shape) stage() {
	if s.alias == "" {
		s.state = StatePending
	}
}

func (s *shape) AddPosition(x, y, z float32) {
	s.stage()
	s.positions = append(s.positions, x, y, z)
}

func (s *shape) AddPositions(positions []float32) {
	for i := 0; i+2 < len(positions); i += 3 {
		s.AddPosition(positions[i], positions[i+1], positions[i+2])
	}
}

func (s *shape) AddNormal(x, y, z float32) {
	s.stage()
	s.normals = append(s.normals, x, y, z)
}

func (s *shape) AddNormals(normals []float32) {
	for i := 0; i+2 < len(normals); i += 3 {
		s.AddNormal(normals[i], normals[i+1], normals[i+2])
	}
}

func (s *shape) AddTextureCoordinate(u, v float32) {
	s.stage()
	s.texCoords = append(s.texCoords, u, v)
}

func (s *shape) AddTextureCoordinates(texCoords []float32) {
	for i := 0; i+1 < len(texCoords); i += 2 {
		s.AddTextureCoordinate(texCoords[i], texCoords[i+1])
	}
}

func (s *shape) AddVertex(x, y, z, nx, ny, nz, u, v float32) {
	s.AddPosition(x, y, z)
	s.AddNormal(nx, ny, nz)
	s.AddTextureCoordinate(u, v)
}

func (s *shape) AddVertices(vertices []float32) {
	for i := 0; i+7 < len(vertices); i += 8 {
		v := vertices[i : i+8]
		s.AddVertex(v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7])
	}
}

func (s *shape) AddFace(a, b, c uint32) {
	s.stage()
	s.faces = append(s.faces, a, b, c)
	s.indexed = true
}

func (s *shape) AddFaces(faces []uint32) {
	for i := 0; i+2 < len(faces); i += 3 {
		s.AddFace(faces[i], faces[i+1], faces[i+2])
	}
}

func (s *shape) IntegrityWarnings() []string {
	var warnings []string
	if len(s.positions) != len(s.normals) {
		warnings = append(warnings, fmt.Sprintf("positions stream has %d floats while normals stream has %d", len(s.positions), len(s.normals)))
	}
	if len(s.positions)/3 != len(s.texCoords)/2 {
		warnings = append(warnings, fmt.Sprintf("positions stream has %d floats while texture coordinates stream has %d", len(s.positions), len(s.texCoords)))
	}
	switch s.layout {
	case pipeline.TopologyTriangleList:
		if len(s.positions)%6 != 0 && len(s.faces)%6 != 0 {
			warnings = append(warnings, "using a triangle list, number of vertices should be divisible by 6")
		}
	case pipeline.TopologyTriangleStrip:
		if len(s.positions)%2 != 0 && len(s.faces)%2 != 0 {
			warnings = append(warnings, "using a triangle strip, number of vertices should be divisible by 2")
		}
	}
	return warnings
}

func (s *shape) Build(r renderer.Renderer) error {
	if s.state == StateBuilt {
		return nil
	}

	vertices := len(s.positions) / 3
	elements := vertices
	if s.indexed {
		elements = len(s.faces)
	}

	var vao renderer.Handle
	if vertices > 0 && elements > 0 {
		var err error
		if vao, err = s.upload(r, vertices); err != nil {
			return fmt.Errorf("shape %q: %w", s.label, err)
		}
	}

	if s.vao != nil {
		s.vao.Release()
	}
	s.vao = vao
	s.elements = elements
	s.state = StateBuilt
	s.positions, s.normals, s.texCoords, s.faces = nil, nil, nil, nil

	r.Logger().Debug("built shape", "label", s.label, "vertices", vertices, "elements", elements, "indexed", s.indexed, "layout", s.layout.String())
	return nil
}

// upload creates the three vertex buffers, the optional index buffer and the vertex array. The normal and
// texture coordinate streams are padded or truncated to the vertex count so the driver never reads past them.
func (s *shape) upload(r renderer.Renderer, vertices int) (renderer.Handle, error) {
	streams := []struct {
		name       string
		data       []float32
		slot       int
		components int
	}{
		{"positions", s.positions, SlotPosition, 3},
		{"normals", s.normals, SlotNormal, 3},
		{"texcoords", s.texCoords, SlotTexCoord, 2},
	}

	var owned []renderer.Handle
	defer func() {
		// the vertex array retains what it needs
		for _, h := range owned {
			h.Release()
		}
	}()

	desc := renderer.VertexArrayDescriptor{Topology: s.layout}
	for _, st := range streams {
		data := fit(st.data, vertices*st.components)
		buf, err := r.CreateBuffer(s.label+" "+st.name, renderer.BufferVertex, common.SliceToBytes(data))
		if err != nil {
			return nil, err
		}
		owned = append(owned, buf)
		desc.Streams = append(desc.Streams, renderer.VertexStream{Buffer: buf, Slot: st.slot, Components: st.components})
	}
	if s.indexed {
		idx, err := r.CreateBuffer(s.label+" indices", renderer.BufferIndex, common.SliceToBytes(s.faces))
		if err != nil {
			return nil, err
		}
		owned = append(owned, idx)
		desc.Index = idx
	}
	return r.CreateVertexArray(s.label, desc)
}

// fit returns data resized to n floats, zero padded.
func fit(data []float32, n int) []float32 {
	if len(data) == n {
		return data
	}
	out := make([]float32, n)
	copy(out, data)
	return out
}

func (s *shape) Draw(ctx Context) error {
	if err := s.Build(ctx.Renderer()); err != nil {
		return err
	}

	last := ctx.Transform()
	ctx.PushTransform(s.ModelMatrix())
	defer ctx.SetTransform(last)

	if s.alias != "" {
		return ctx.DrawShape(s.alias)
	}
	if s.vao == nil {
		return nil
	}
	return ctx.DrawElements(s.vao, s.elements)
}

func (s *shape) Position() mgl32.Vec3 {
	return s.position
}

func (s *shape) SetPosition(p mgl32.Vec3) {
	s.position = p
}

func (s *shape) Translate(delta mgl32.Vec3) {
	s.position = s.position.Add(delta)
}

func (s *shape) ScaleFactor() mgl32.Vec3 {
	return s.scale
}

func (s *shape) SetScale(v mgl32.Vec3) {
	s.scale = v
}

func (s *shape) Scale(v mgl32.Vec3) {
	s.scale = mgl32.Vec3{s.scale[0] * v[0], s.scale[1] * v[1], s.scale[2] * v[2]}
}

func (s *shape) Rotation() mgl32.Quat {
	return s.rotation
}

func (s *shape) SetRotation(angle float32, axis mgl32.Vec3) {
	if axis.Len() == 0 {
		return
	}
	s.rotation = mgl32.QuatRotate(angle, axis.Normalize())
}

func (s *shape) SetRotationQuat(q mgl32.Quat) {
	if q.Len() == 0 {
		return
	}
	s.rotation = q.Normalize()
}

func (s *shape) Rotate(angle float32, axis mgl32.Vec3) {
	if axis.Len() == 0 {
		return
	}
	s.rotation = mgl32.QuatRotate(angle, axis.Normalize()).Mul(s.rotation).Normalize()
}

func (s *shape) ModelMatrix() mgl32.Mat4 {
	t := mgl32.Translate3D(s.position[0], s.position[1], s.position[2])
	sc := mgl32.Scale3D(s.scale[0], s.scale[1], s.scale[2])
	return t.Mul4(s.rotation.Mat4()).Mul4(sc)
}

func (s *shape) Release() {
	if s.vao != nil {
		s.vao.Release()
		s.vao = nil
	}
	s.elements = 0
	if s.alias == "" {
		s.state = StatePending
	}
}
