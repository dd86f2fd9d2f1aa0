package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex attribute slots interpreted by the software rasterizer.
const (
	swSlotPosition = 0
	swSlotNormal   = 1
	swSlotTexCoord = 2
)

// minClipW rejects triangles with a vertex on or behind the eye plane. The rasterizer does no clipping.
const minClipW = 1e-6

type swVertex struct {
	clip   mgl32.Vec4
	world  mgl32.Vec3
	normal mgl32.Vec3
	uv     mgl32.Vec2
}

type swAttrib struct {
	data       []float32
	components int
}

func (a swAttrib) count() int {
	if a.components <= 0 {
		return 0
	}
	return len(a.data) / a.components
}

// at returns component c of vertex i, or def when the stream does not carry it.
func (a swAttrib) at(i, c int, def float32) float32 {
	if c >= a.components {
		return def
	}
	j := i*a.components + c
	if j >= len(a.data) {
		return def
	}
	return a.data[j]
}

// swRaster runs one draw call.
type swRaster struct {
	target  *swTarget
	state   pipeline.State
	vx, vy  int
	vw, vh  int
	shading swShading

	model, mvp mgl32.Mat4

	attribs  map[int]swAttrib
	vertices int
	tris     []uint32

	cache map[uint32]swVertex
}

func newSWRaster(b *softwareRendererBackend, prog *swProgram, target *swTarget, block []byte) *swRaster {
	u := swUniforms{data: block, table: prog.uniforms}
	r := &swRaster{
		target:  target,
		state:   b.state,
		vx:      b.vx,
		vy:      b.vy,
		vw:      b.vw,
		vh:      b.vh,
		attribs: make(map[int]swAttrib),
		cache:   make(map[uint32]swVertex),
	}
	r.model = u.mat4("m")
	view := u.mat4("v")
	r.mvp = u.mat4("p").Mul4(view).Mul4(r.model)
	r.shading = newSWShading(b, prog, u, view)
	return r
}

// assemble gathers the vertex streams and expands the element range into triangles.
func (r *swRaster) assemble(vao *swVertexArray, count int, buffers map[uint64]*swBuffer) error {
	for _, s := range vao.streams {
		buf, ok := buffers[s.buffer]
		if !ok {
			return fmt.Errorf("vertex buffer %d: %w", s.buffer, ErrReleased)
		}
		r.attribs[s.slot] = swAttrib{data: common.BytesToFloat32s(buf.data), components: s.components}
	}
	r.vertices = r.attribs[swSlotPosition].count()

	var elements []uint32
	if vao.index != 0 {
		buf, ok := buffers[vao.index]
		if !ok {
			return fmt.Errorf("index buffer %d: %w", vao.index, ErrReleased)
		}
		n := min(max(count, 0), len(buf.data)/4)
		elements = make([]uint32, n)
		for i := range elements {
			elements[i] = uint32(common.Int32At(buf.data, i*4))
		}
	} else {
		n := min(max(count, 0), r.vertices)
		elements = make([]uint32, n)
		for i := range elements {
			elements[i] = uint32(i)
		}
	}

	switch vao.topology {
	case pipeline.TopologyTriangleStrip:
		for i := 0; i+2 < len(elements); i++ {
			if i%2 == 0 {
				r.tris = append(r.tris, elements[i], elements[i+1], elements[i+2])
			} else {
				r.tris = append(r.tris, elements[i+1], elements[i], elements[i+2])
			}
		}
	case pipeline.TopologyTriangleFan:
		for i := 1; i+1 < len(elements); i++ {
			r.tris = append(r.tris, elements[0], elements[i], elements[i+1])
		}
	default:
		r.tris = elements[:len(elements)-len(elements)%3]
	}
	return nil
}

func (r *swRaster) vertex(i uint32) (swVertex, bool) {
	if int(i) >= r.vertices {
		return swVertex{}, false
	}
	if v, ok := r.cache[i]; ok {
		return v, true
	}
	idx := int(i)
	pos := r.attribs[swSlotPosition]
	nrm := r.attribs[swSlotNormal]
	tc := r.attribs[swSlotTexCoord]
	p := mgl32.Vec3{pos.at(idx, 0, 0), pos.at(idx, 1, 0), pos.at(idx, 2, 0)}
	n := mgl32.Vec3{nrm.at(idx, 0, 0), nrm.at(idx, 1, 0), nrm.at(idx, 2, 0)}
	v := swVertex{
		clip:   r.mvp.Mul4x1(p.Vec4(1)),
		world:  r.model.Mul4x1(p.Vec4(1)).Vec3(),
		normal: common.TransformDirection(r.model, n),
		uv:     mgl32.Vec2{tc.at(idx, 0, 0), tc.at(idx, 1, 0)},
	}
	r.cache[i] = v
	return v, true
}

func (r *swRaster) run() {
	for t := 0; t+2 < len(r.tris); t += 3 {
		r.triangle(r.tris[t], r.tris[t+1], r.tris[t+2])
	}
}

// edge is twice the signed area of (a, b, p).
func edge(a, b, p mgl32.Vec2) float32 {
	return (p[0]-a[0])*(b[1]-a[1]) - (p[1]-a[1])*(b[0]-a[0])
}

// ownsEdge breaks ties for pixels exactly on an edge so a shared edge is drawn by exactly one triangle.
func ownsEdge(a, b mgl32.Vec2) bool {
	dy := b[1] - a[1]
	return dy > 0 || (dy == 0 && b[0]-a[0] < 0)
}

func (r *swRaster) triangle(i0, i1, i2 uint32) {
	var vs [3]swVertex
	for k, i := range [3]uint32{i0, i1, i2} {
		v, ok := r.vertex(i)
		if !ok || v.clip[3] <= minClipW {
			return
		}
		vs[k] = v
	}

	var ndc [3]mgl32.Vec3
	var scr [3]mgl32.Vec2
	for k := range vs {
		w := vs[k].clip[3]
		ndc[k] = mgl32.Vec3{vs[k].clip[0] / w, vs[k].clip[1] / w, vs[k].clip[2] / w}
		scr[k] = mgl32.Vec2{
			float32(r.vx) + (ndc[k][0]+1)/2*float32(r.vw),
			float32(r.vy) + (1-ndc[k][1])/2*float32(r.vh),
		}
	}

	// counter-clockwise in NDC is front facing
	area := (ndc[1][0]-ndc[0][0])*(ndc[2][1]-ndc[0][1]) - (ndc[2][0]-ndc[0][0])*(ndc[1][1]-ndc[0][1])
	if area == 0 {
		return
	}
	if r.state.CullEnabled && area < 0 {
		return
	}

	sArea := edge(scr[0], scr[1], scr[2])
	if sArea < 0 {
		vs[1], vs[2] = vs[2], vs[1]
		ndc[1], ndc[2] = ndc[2], ndc[1]
		scr[1], scr[2] = scr[2], scr[1]
		sArea = -sArea
	}
	if sArea == 0 {
		return
	}

	minX := max(int(math32.Floor(min(scr[0][0], scr[1][0], scr[2][0]))), r.vx, 0)
	maxX := min(int(math32.Ceil(max(scr[0][0], scr[1][0], scr[2][0]))), r.vx+r.vw, r.target.width)
	minY := max(int(math32.Floor(min(scr[0][1], scr[1][1], scr[2][1]))), r.vy, 0)
	maxY := min(int(math32.Ceil(max(scr[0][1], scr[1][1], scr[2][1]))), r.vy+r.vh, r.target.height)

	for py := minY; py < maxY; py++ {
		for px := minX; px < maxX; px++ {
			p := mgl32.Vec2{float32(px) + 0.5, float32(py) + 0.5}
			w0 := edge(scr[1], scr[2], p)
			w1 := edge(scr[2], scr[0], p)
			w2 := edge(scr[0], scr[1], p)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !ownsEdge(scr[1], scr[2])) ||
				(w1 == 0 && !ownsEdge(scr[2], scr[0])) ||
				(w2 == 0 && !ownsEdge(scr[0], scr[1])) {
				continue
			}
			b := [3]float32{w0 / sArea, w1 / sArea, w2 / sArea}

			z := b[0]*ndc[0][2] + b[1]*ndc[1][2] + b[2]*ndc[2][2]
			if z < 0 || z > 1 {
				continue
			}

			// perspective-correct weights for varyings
			var q [3]float32
			var sum float32
			for k := range q {
				q[k] = b[k] / vs[k].clip[3]
				sum += q[k]
			}
			for k := range q {
				q[k] /= sum
			}
			world := vs[0].world.Mul(q[0]).Add(vs[1].world.Mul(q[1])).Add(vs[2].world.Mul(q[2]))
			normal := vs[0].normal.Mul(q[0]).Add(vs[1].normal.Mul(q[1])).Add(vs[2].normal.Mul(q[2]))
			uv := vs[0].uv.Mul(q[0]).Add(vs[1].uv.Mul(q[1])).Add(vs[2].uv.Mul(q[2]))

			r.fragment(px, py, z, world, normal, uv)
		}
	}
}

func (r *swRaster) fragment(px, py int, z float32, world, normal mgl32.Vec3, uv mgl32.Vec2) {
	t := r.target
	idx := py*t.width + px

	stencilActive := r.state.StencilEnabled && t.stencil != nil
	if stencilActive {
		mask := uint8(r.state.StencilMask)
		ref := uint8(r.state.StencilRef)
		stored := t.stencil[idx]
		if !r.state.StencilCompare.Compare(float32(ref&mask), float32(stored&mask)) {
			return
		}
	}
	if r.state.DepthTestEnabled && t.depth != nil {
		if !r.state.DepthCompare.Compare(z, t.depth[idx]) {
			return
		}
	}
	if stencilActive {
		mask := uint8(r.state.StencilMask)
		t.stencil[idx] = (t.stencil[idx] &^ mask) | (uint8(r.state.StencilRef) & mask)
	}
	if r.state.DepthWrites() && t.depth != nil {
		t.depth[idx] = z
	}

	if len(t.colors) == 0 {
		return
	}
	color := r.shading.shade(world, normal, uv)
	dst := t.colors[0]
	if r.state.BlendEnabled {
		color = blend(r.state.Blend, color, dst.load(px, py))
	}
	dst.store(px, py, color)
}

func blend(fn pipeline.BlendFunc, src, dst [4]float32) [4]float32 {
	var out [4]float32
	for k := range out {
		switch fn {
		case pipeline.BlendDestinationAlpha:
			out[k] = src[k]*(1-dst[3]) + dst[k]*dst[3]
		case pipeline.BlendAdditive:
			out[k] = src[k] + dst[k]
		default:
			out[k] = src[k]*src[3] + dst[k]*(1-src[3])
		}
	}
	return out
}
