package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quadOBJ = `# a unit quad
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseQuadFanTriangulates(t *testing.T) {
	l := NewLoader(BackendTypeOBJ)
	mesh, err := l.Parse(strings.NewReader(quadOBJ))
	require.NoError(t, err)

	assert.Equal(t, 4, mesh.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Faces)
	assert.Equal(t, []float32{0, 0, 1, 0, 1, 1, 0, 1}, mesh.TexCoords)
	assert.Equal(t, []float32{1, 1, 0}, mesh.Positions[6:9])
	for i := 0; i < len(mesh.Normals); i += 3 {
		assert.Equal(t, []float32{0, 0, 1}, mesh.Normals[i:i+3])
	}
}

func TestParseCornerForms(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
vt 0.5 0.5
vn 0 0 1
f 1 2 3
f 1/1 2/1 3/1
f 1//1 2//1 3//1
f -3/-1/-1 -2/-1/-1 -1/-1/-1
`
	mesh, err := NewLoader(BackendTypeOBJ).Parse(strings.NewReader(src))
	require.NoError(t, err)

	// positions only, with texcoord, with normal, with both
	assert.Equal(t, 12, mesh.VertexCount())
	assert.Equal(t, 4, mesh.TriangleCount())
	assert.Equal(t, []uint32{9, 10, 11}, mesh.Faces[9:12])

	// absent attributes are zero
	assert.Equal(t, []float32{0, 0, 0}, mesh.Normals[0:3])
	assert.Equal(t, []float32{0.5, 0.5}, mesh.TexCoords[6:8])
}

func TestParseSharesCorners(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f 1 3 4
`
	mesh, err := NewLoader(BackendTypeOBJ).Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 4, mesh.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Faces)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"out of range":   "v 0 0 0\nf 1 2 3\n",
		"zero index":     "v 0 0 0\nf 0 1 1\n",
		"two corners":    "v 0 0 0\nf 1 1\n",
		"bad number":     "v 0 x 0\n",
		"short vertex":   "v 0 0\n",
		"bad corner":     "v 0 0 0\nf 1/1/1/1 1 1\n",
		"missing normal": "v 0 0 0\nf 1//1 1//1 1//1\n",
	}
	l := NewLoader(BackendTypeOBJ)
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Parse(strings.NewReader(src))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Contains(t, err.Error(), "line ")
		})
	}
}

func TestLoadShapeCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quad.obj")
	require.NoError(t, os.WriteFile(path, []byte(quadOBJ), 0o644))

	l := NewLoader(BackendTypeOBJ)
	s, err := l.LoadShape(path)
	require.NoError(t, err)
	assert.Equal(t, "quad", s.Label())
	assert.Equal(t, shape.StatePending, s.State())
	assert.Empty(t, s.IntegrityWarnings())

	again, err := l.LoadShape(path)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Len(t, l.Shapes(), 1)

	_, err = l.LoadShape(filepath.Join(dir, "missing.obj"))
	assert.Error(t, err)
	_, err = l.LoadShape(filepath.Join(dir, "quad.fbx"))
	assert.ErrorContains(t, err, "unsupported mesh format")
}

func TestLoadReaderBuildsWithRenderer(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(8, 8))
	require.NoError(t, err)
	defer r.Release()

	l := NewLoader(BackendTypeOBJ, WithRenderer(r))
	s, err := l.LoadReader("quad", strings.NewReader(quadOBJ))
	require.NoError(t, err)
	assert.Equal(t, shape.StateBuilt, s.State())
	assert.Equal(t, 6, s.ElementCount())
	assert.Same(t, s, l.Get("quad"))

	l.Evict("quad")
	assert.Nil(t, l.Get("quad"))
	assert.Equal(t, shape.StatePending, s.State())
	assert.Zero(t, r.LiveHandles())
}

func TestWithShapePrepopulates(t *testing.T) {
	quad := shape.NewQuad()
	l := NewLoader(BackendTypeOBJ, WithShape("builtin", quad))

	s, err := l.LoadReader("builtin", strings.NewReader("garbage that is never parsed"))
	require.NoError(t, err)
	assert.Same(t, quad, s)
}
