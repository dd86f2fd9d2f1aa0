package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every OBJ parse error.
var ErrMalformed = errors.New("malformed obj")

// objLoaderBackendImpl is the implementation of objLoaderBackend.
type objLoaderBackendImpl struct{}

// objLoaderBackend is a loaderBackend implementation for Wavefront OBJ files.
type objLoaderBackend interface {
	loaderBackend
}

var _ objLoaderBackend = &objLoaderBackendImpl{}

// newOBJLoaderBackend creates a new OBJ loader backend.
//
// Returns:
//   - objLoaderBackend: the loader backend for OBJ files
func newOBJLoaderBackend() objLoaderBackend {
	return &objLoaderBackendImpl{}
}

func (b *objLoaderBackendImpl) Load(path string) (*MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mesh, err := b.LoadReader(f)
	if err != nil {
		return nil, err
	}
	mesh.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return mesh, nil
}

func (b *objLoaderBackendImpl) LoadReader(r io.Reader) (*MeshData, error) {
	p := &objParser{
		mesh:  &MeshData{},
		index: make(map[objCorner]uint32),
	}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p.mesh, nil
}

// objCorner is one face corner: zero based position, texture coordinate and normal indices, -1 when absent.
type objCorner struct {
	v, t, n int
}

// objParser accumulates the indexed attribute pools of an OBJ file and emits one output vertex per unique
// corner.
type objParser struct {
	positions [][3]float32
	texCoords [][2]float32
	normals   [][3]float32

	mesh  *MeshData
	index map[objCorner]uint32
}

func (p *objParser) parseLine(line string) error {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.positions = append(p.positions, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		var t [2]float32
		copy(t[:], v)
		p.texCoords = append(p.texCoords, t)
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		p.normals = append(p.normals, [3]float32{v[0], v[1], v[2]})
	case "f":
		return p.parseFace(fields[1:])
	}
	// o, g, s, usemtl, mtllib and other statements carry nothing the mesh needs
	return nil
}

// parseFace resolves every corner and fan triangulates the polygon around its first corner.
func (p *objParser) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: face has %d corners, want at least 3", ErrMalformed, len(fields))
	}
	corners := make([]uint32, len(fields))
	for i, field := range fields {
		c, err := p.parseCorner(field)
		if err != nil {
			return err
		}
		corners[i] = p.vertex(c)
	}
	for i := 1; i+1 < len(corners); i++ {
		p.mesh.Faces = append(p.mesh.Faces, corners[0], corners[i], corners[i+1])
	}
	return nil
}

// parseCorner parses v, v/t, v//n or v/t/n.
func (p *objParser) parseCorner(field string) (objCorner, error) {
	parts := strings.Split(field, "/")
	if len(parts) > 3 {
		return objCorner{}, fmt.Errorf("%w: corner %q", ErrMalformed, field)
	}
	c := objCorner{v: -1, t: -1, n: -1}
	var err error
	if c.v, err = resolveIndex(parts[0], len(p.positions)); err != nil {
		return objCorner{}, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.t, err = resolveIndex(parts[1], len(p.texCoords)); err != nil {
			return objCorner{}, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.n, err = resolveIndex(parts[2], len(p.normals)); err != nil {
			return objCorner{}, err
		}
	}
	return c, nil
}

// vertex returns the output index of c, appending a new vertex the first time c is seen.
func (p *objParser) vertex(c objCorner) uint32 {
	if i, ok := p.index[c]; ok {
		return i
	}
	i := uint32(len(p.mesh.Positions) / 3)
	p.index[c] = i

	pos := p.positions[c.v]
	p.mesh.Positions = append(p.mesh.Positions, pos[:]...)
	var n [3]float32
	if c.n >= 0 {
		n = p.normals[c.n]
	}
	p.mesh.Normals = append(p.mesh.Normals, n[:]...)
	var t [2]float32
	if c.t >= 0 {
		t = p.texCoords[c.t]
	}
	p.mesh.TexCoords = append(p.mesh.TexCoords, t[:]...)
	return i
}

// resolveIndex converts a 1 based or negative relative OBJ index into a zero based index into a pool of n.
func resolveIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformed, s)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	}
	return 0, fmt.Errorf("%w: index %d out of range 1..%d", ErrMalformed, i, n)
}

func parseFloats(fields []string, atLeast int) ([]float32, error) {
	if len(fields) < atLeast {
		return nil, fmt.Errorf("%w: got %d components, want at least %d", ErrMalformed, len(fields), atLeast)
	}
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrMalformed, f)
		}
		out[i] = float32(v)
	}
	return out, nil
}
