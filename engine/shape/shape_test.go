package shape

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testContext records what shapes ask of the orchestrator.
type testContext struct {
	r         renderer.Renderer
	p         shader.Program
	transform mgl32.Mat4
	drawn     []mgl32.Mat4
	counts    []int
	named     []string
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(8, 8))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	p, err := shader.NewDefaultProgram(r, "default")
	require.NoError(t, err)
	require.True(t, p.Linked(), p.Diagnostics())
	p.Bind()
	return &testContext{r: r, p: p, transform: mgl32.Ident4()}
}

func (c *testContext) Renderer() renderer.Renderer { return c.r }
func (c *testContext) Transform() mgl32.Mat4 { return c.transform }
func (c *testContext) SetTransform(m mgl32.Mat4) { c.transform = m }
func (c *testContext) PushTransform(m mgl32.Mat4) { c.transform = c.transform.Mul4(m) }

func (c *testContext) DrawShape(name string) error {
	c.named = append(c.named, name)
	return nil
}

func (c *testContext) DrawElements(vao renderer.Handle, count int) error {
	c.drawn = append(c.drawn, c.transform)
	c.counts = append(c.counts, count)
	if err := c.p.SetUniform("m", c.transform); err != nil {
		return err
	}
	return c.p.Draw(vao, count)
}

func texturedQuad() Shape {
	return NewSeparated(
		[]float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		[]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		[]float32{0, 0, 1, 0, 1, 1, 0, 1},
		WithFaces([]uint32{0, 1, 2, 2, 3, 0}),
	)
}

func TestIndexedQuadBuildsSixElements(t *testing.T) {
	ctx := newTestContext(t)
	s := texturedQuad()

	assert.Empty(t, s.IntegrityWarnings())
	assert.Equal(t, StatePending, s.State())
	assert.True(t, s.Indexed())

	require.NoError(t, s.Draw(ctx))
	assert.Equal(t, StateBuilt, s.State())
	assert.Equal(t, 6, s.ElementCount())
	assert.Equal(t, []int{6}, ctx.counts)
	assert.NotNil(t, s.VertexArray())
}

func TestLazyBuildHappensOnce(t *testing.T) {
	ctx := newTestContext(t)
	before := ctx.r.Stats()
	s := NewCube()

	require.NoError(t, s.Draw(ctx))
	after := ctx.r.Stats()
	assert.Equal(t, before.Buffers+3, after.Buffers)
	assert.Equal(t, before.VertexArrays+1, after.VertexArrays)
	vao := s.VertexArray()

	require.NoError(t, s.Draw(ctx))
	assert.Equal(t, after.Buffers, ctx.r.Stats().Buffers)
	assert.Equal(t, after.VertexArrays, ctx.r.Stats().VertexArrays)
	assert.Same(t, vao, s.VertexArray())
	assert.Equal(t, []int{36, 36}, ctx.counts)

	s.Release()
	assert.Equal(t, before.Buffers, ctx.r.Stats().Buffers)
	assert.Equal(t, StatePending, s.State())
}

func TestExplicitBuild(t *testing.T) {
	ctx := newTestContext(t)
	s := NewCircle(40)

	require.NoError(t, s.Build(ctx.r))
	assert.Equal(t, StateBuilt, s.State())
	assert.False(t, s.Indexed())
	assert.Equal(t, 42, s.ElementCount())
	assert.Equal(t, pipeline.TopologyTriangleFan, s.Layout())

	// staging storage is cleared, so there is nothing left to check
	assert.Empty(t, s.IntegrityWarnings())
}

func TestAddingAfterBuildRebuilds(t *testing.T) {
	ctx := newTestContext(t)
	s := NewShape()
	s.AddVertices([]float32{
		0, 0, 0, 0, 0, 1, 0, 0,
		1, 0, 0, 0, 0, 1, 1, 0,
		1, 1, 0, 0, 0, 1, 1, 1,
	})
	require.NoError(t, s.Build(ctx.r))
	assert.Equal(t, 3, s.ElementCount())
	vaos := ctx.r.Stats().VertexArrays

	s.AddVertices([]float32{
		0, 0, 0, 0, 0, 1, 0, 0,
		1, 1, 0, 0, 0, 1, 1, 1,
		0, 1, 0, 0, 0, 1, 0, 1,
	})
	assert.Equal(t, StatePending, s.State())
	require.NoError(t, s.Build(ctx.r))
	assert.Equal(t, 3, s.ElementCount())
	assert.Equal(t, vaos, ctx.r.Stats().VertexArrays)
}

func TestIntegrityWarnings(t *testing.T) {
	s := NewSeparated(
		[]float32{0, 0, 0, 1, 0, 0, 1, 1, 0},
		[]float32{0, 0, 1},
		[]float32{0, 0, 1, 0},
		WithFaces([]uint32{0, 1, 2}),
	)
	warnings := s.IntegrityWarnings()
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "normals")
	assert.Contains(t, warnings[1], "texture coordinates")
	assert.Contains(t, warnings[2], "divisible by 6")

	strip := NewShape(WithLayout(pipeline.TopologyTriangleStrip))
	strip.AddVertex(0, 0, 0, 0, 0, 1, 0, 0)
	assert.Empty(t, strip.IntegrityWarnings())
	strip.AddFace(0, 0, 0)
	assert.Equal(t, []string{"using a triangle strip, number of vertices should be divisible by 2"}, strip.IntegrityWarnings())
}

func TestMismatchedStreamsStillBuild(t *testing.T) {
	ctx := newTestContext(t)
	s := NewSeparated([]float32{0, 0, 0, 1, 0, 0, 1, 1, 0}, nil, nil)
	assert.NotEmpty(t, s.IntegrityWarnings())
	require.NoError(t, s.Draw(ctx))
	assert.Equal(t, 3, s.ElementCount())
}

func TestDrawRestoresTransform(t *testing.T) {
	ctx := newTestContext(t)
	outer := mgl32.Translate3D(1, 2, 3)
	ctx.transform = outer

	s := texturedQuad()
	s.SetPosition(mgl32.Vec3{5, 0, 0})
	s.SetScale(mgl32.Vec3{2, 2, 2})
	require.NoError(t, s.Draw(ctx))

	assert.Equal(t, outer, ctx.transform)
	require.Len(t, ctx.drawn, 1)
	assert.True(t, ctx.drawn[0].ApproxEqual(outer.Mul4(s.ModelMatrix())))
}

func TestModelMatrixOrder(t *testing.T) {
	s := NewShape()
	s.SetScale(mgl32.Vec3{2, 1, 1})
	s.SetRotation(math32.Pi/2, mgl32.Vec3{0, 0, 1})
	s.SetPosition(mgl32.Vec3{10, 0, 0})

	// scale first: (1,0,0) -> (2,0,0), then rotate -> (0,2,0), then translate -> (10,2,0)
	p := s.ModelMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.True(t, p.Vec3().ApproxEqualThreshold(mgl32.Vec3{10, 2, 0}, 1e-5), "%v", p)

	s.Rotate(math32.Pi/2, mgl32.Vec3{0, 0, 1})
	p = s.ModelMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.True(t, p.Vec3().ApproxEqualThreshold(mgl32.Vec3{8, 0, 0}, 1e-5), "%v", p)

	s.Scale(mgl32.Vec3{0.5, 1, 1})
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, s.ScaleFactor())
	s.Translate(mgl32.Vec3{0, 1, 0})
	assert.Equal(t, mgl32.Vec3{10, 1, 0}, s.Position())
}

func TestZeroRotationAxisIsIgnored(t *testing.T) {
	s := NewShape()
	s.SetRotation(math32.Pi/2, mgl32.Vec3{0, 0, 1})
	want := s.Rotation()

	s.SetRotation(1, mgl32.Vec3{})
	s.Rotate(1, mgl32.Vec3{})
	s.SetRotationQuat(mgl32.Quat{})
	assert.Equal(t, want, s.Rotation())

	m := s.ModelMatrix()
	for i, v := range m {
		assert.False(t, math32.IsNaN(v), "element %d", i)
	}
}

func TestAliasRedirects(t *testing.T) {
	ctx := newTestContext(t)
	before := ctx.r.Stats()

	s := NewAlias("cube")
	assert.Equal(t, StateBuilt, s.State())
	s.SetPosition(mgl32.Vec3{0, 3, 0})
	require.NoError(t, s.Draw(ctx))

	assert.Equal(t, []string{"cube"}, ctx.named)
	assert.Equal(t, mgl32.Ident4(), ctx.transform)
	assert.Equal(t, before.Buffers, ctx.r.Stats().Buffers)
	assert.Nil(t, s.VertexArray())
}

func TestPrimitiveCounts(t *testing.T) {
	ctx := newTestContext(t)
	cases := []struct {
		shape    Shape
		elements int
		indexed  bool
	}{
		{NewQuad(), 6, true},
		{NewUIQuad(), 6, true},
		{NewCube(), 36, false},
		{NewSphere(8, 16), 8 * 16 * 6, false},
		{NewCylinder(20), 20 * 12, false},
	}
	for _, c := range cases {
		assert.Empty(t, c.shape.IntegrityWarnings(), c.shape.Label())
		require.NoError(t, c.shape.Build(ctx.r))
		assert.Equal(t, c.elements, c.shape.ElementCount(), c.shape.Label())
		assert.Equal(t, c.indexed, c.shape.Indexed(), c.shape.Label())
	}
}
