package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Light kinds as written to lights[i].kind.
const (
	swLightAmbient     = 0
	swLightDirectional = 1
	swLightPoint       = 2
)

// swMaxLights is the light array length of the standard scene block.
const swMaxLights = 8

// swUniforms reads named values out of a program's uniform block.
type swUniforms struct {
	data  []byte
	table map[string]UniformInfo
}

func (u swUniforms) lookup(name string, size int) (int, bool) {
	info, ok := u.table[name]
	if !ok || info.Offset+size > len(u.data) {
		return 0, false
	}
	return info.Offset, true
}

func (u swUniforms) float(name string, def float32) float32 {
	off, ok := u.lookup(name, 4)
	if !ok {
		return def
	}
	return common.Float32At(u.data, off)
}

func (u swUniforms) integer(name string, def int32) int32 {
	off, ok := u.lookup(name, 4)
	if !ok {
		return def
	}
	return common.Int32At(u.data, off)
}

func (u swUniforms) vec2(name string, def mgl32.Vec2) mgl32.Vec2 {
	off, ok := u.lookup(name, 8)
	if !ok {
		return def
	}
	return common.Vec2At(u.data, off)
}

func (u swUniforms) vec3(name string, def mgl32.Vec3) mgl32.Vec3 {
	off, ok := u.lookup(name, 12)
	if !ok {
		return def
	}
	return common.Vec3At(u.data, off)
}

func (u swUniforms) mat4(name string) mgl32.Mat4 {
	off, ok := u.lookup(name, 64)
	if !ok {
		return mgl32.Ident4()
	}
	return common.Mat4At(u.data, off)
}

type swLight struct {
	kind      int32
	color     mgl32.Vec3
	direction mgl32.Vec3
	position  mgl32.Vec3
	radius    float32
	linear    float32
	quadratic float32
}

// swShading is the fragment program of the software backend: the standard material, font and
// light uniforms resolved once per draw.
type swShading struct {
	color     mgl32.Vec3
	alpha     float32
	specular  mgl32.Vec3
	shininess float32

	useTexture bool
	repeat     mgl32.Vec2
	texStart   mgl32.Vec2
	texEnd     mgl32.Vec2
	tex        *swTexture

	isFont    bool
	fontStart mgl32.Vec2
	fontEnd   mgl32.Vec2
	fontTex   *swTexture

	useLighting bool
	lights      []swLight
	eye         mgl32.Vec3
}

func newSWShading(b *softwareRendererBackend, prog *swProgram, u swUniforms, view mgl32.Mat4) swShading {
	s := swShading{
		color:       u.vec3("material.color", mgl32.Vec3{1, 1, 1}),
		alpha:       u.float("material.alpha", 1),
		specular:    u.vec3("material.specularColor", mgl32.Vec3{}),
		shininess:   u.float("material.shininess", 0),
		useTexture:  u.integer("material.useTexture", 0) != 0,
		repeat:      u.vec2("material.textureRepeat", mgl32.Vec2{1, 1}),
		texStart:    u.vec2("material.textureStart", mgl32.Vec2{0, 0}),
		texEnd:      u.vec2("material.textureEnd", mgl32.Vec2{1, 1}),
		isFont:      u.integer("font.isFont", 0) != 0,
		fontStart:   u.vec2("font.textureStart", mgl32.Vec2{0, 0}),
		fontEnd:     u.vec2("font.textureEnd", mgl32.Vec2{1, 1}),
		useLighting: u.integer("material.useLighting", 0) != 0,
	}
	s.tex = b.boundTexture(prog, "tex")
	s.fontTex = b.boundTexture(prog, "fontTex")

	n := int(u.integer("numLights", 0))
	n = max(0, min(n, swMaxLights))
	for i := 0; i < n; i++ {
		key := func(field string) string { return fmt.Sprintf("lights[%d].%s", i, field) }
		att := u.vec2(key("att"), mgl32.Vec2{})
		s.lights = append(s.lights, swLight{
			kind:      u.integer(key("kind"), swLightAmbient),
			color:     u.vec3(key("color"), mgl32.Vec3{}),
			direction: u.vec3(key("dir"), mgl32.Vec3{}),
			position:  u.vec3(key("pos"), mgl32.Vec3{}),
			radius:    u.float(key("radius"), -1),
			linear:    att[0],
			quadratic: att[1],
		})
	}

	// camera position is the inverse view translation
	s.eye = view.Mat3().Transpose().Mul3x1(view.Col(3).Vec3()).Mul(-1)
	return s
}

// boundTexture returns the texture bound to the unit of the named sampled texture, nil if none.
func (b *softwareRendererBackend) boundTexture(prog *swProgram, name string) *swTexture {
	for _, tb := range prog.desc.Textures {
		if tb.Name != name {
			continue
		}
		id, ok := b.units[tb.Unit]
		if !ok {
			return nil
		}
		return b.textures[id]
	}
	return nil
}

func fract(v float32) float32 {
	return v - math32.Floor(v)
}

func (s *swShading) shade(world, normal mgl32.Vec3, uv mgl32.Vec2) [4]float32 {
	base := [4]float32{s.color[0], s.color[1], s.color[2], s.alpha}

	if s.isFont {
		fc := mgl32.Vec2{
			s.fontStart[0] + uv[0]*(s.fontEnd[0]-s.fontStart[0]),
			s.fontStart[1] + uv[1]*(s.fontEnd[1]-s.fontStart[1]),
		}
		glyph := sample(s.fontTex, fc)
		return [4]float32{base[0], base[1], base[2], base[3] * glyph[0]}
	}

	if s.useTexture {
		tc := mgl32.Vec2{
			s.texStart[0] + fract(uv[0]*s.repeat[0])*(s.texEnd[0]-s.texStart[0]),
			s.texStart[1] + fract(uv[1]*s.repeat[1])*(s.texEnd[1]-s.texStart[1]),
		}
		texel := sample(s.tex, tc)
		for k := range base {
			base[k] *= texel[k]
		}
	}

	if !s.useLighting || len(s.lights) == 0 {
		return base
	}

	albedo := mgl32.Vec3{base[0], base[1], base[2]}
	n := normal
	if n.Len() > 0 {
		n = n.Normalize()
	}
	viewDir := s.eye.Sub(world)
	if viewDir.Len() > 0 {
		viewDir = viewDir.Normalize()
	}

	var lit mgl32.Vec3
	for _, l := range s.lights {
		if l.kind == swLightAmbient {
			lit = lit.Add(mulVec3(l.color, albedo))
			continue
		}

		var dir mgl32.Vec3
		atten := float32(1)
		switch l.kind {
		case swLightDirectional:
			dir = l.direction.Mul(-1)
		case swLightPoint:
			toLight := l.position.Sub(world)
			dist := toLight.Len()
			if l.radius >= 0 && dist > l.radius {
				continue
			}
			if dist > 0 {
				dir = toLight.Mul(1 / dist)
			}
			atten = 1 / (1 + l.linear*dist + l.quadratic*dist*dist)
		default:
			continue
		}
		if dir.Len() > 0 {
			dir = dir.Normalize()
		}

		diffuse := math32.Max(n.Dot(dir), 0)
		var spec float32
		if diffuse > 0 {
			h := dir.Add(viewDir)
			if h.Len() > 0 {
				spec = math32.Pow(math32.Max(n.Dot(h.Normalize()), 0), s.shininess)
			}
		}
		contrib := albedo.Mul(diffuse).Add(s.specular.Mul(spec))
		lit = lit.Add(mulVec3(l.color, contrib).Mul(atten))
	}
	return [4]float32{lit[0], lit[1], lit[2], base[3]}
}

func mulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// sample reads a texture at normalized coordinates. A missing texture samples as opaque white.
func sample(t *swTexture, uv mgl32.Vec2) [4]float32 {
	if t == nil {
		return [4]float32{1, 1, 1, 1}
	}
	if t.filter == FilterNearest {
		x := wrapIndex(int(math32.Floor(uv[0]*float32(t.width))), t.width, t.wrap)
		y := wrapIndex(int(math32.Floor(uv[1]*float32(t.height))), t.height, t.wrap)
		return t.load(x, y)
	}

	fx := uv[0]*float32(t.width) - 0.5
	fy := uv[1]*float32(t.height) - 0.5
	x0, y0 := math32.Floor(fx), math32.Floor(fy)
	tx, ty := fx-x0, fy-y0
	ix0 := wrapIndex(int(x0), t.width, t.wrap)
	ix1 := wrapIndex(int(x0)+1, t.width, t.wrap)
	iy0 := wrapIndex(int(y0), t.height, t.wrap)
	iy1 := wrapIndex(int(y0)+1, t.height, t.wrap)

	a, b := t.load(ix0, iy0), t.load(ix1, iy0)
	c, d := t.load(ix0, iy1), t.load(ix1, iy1)
	var out [4]float32
	for k := range out {
		top := a[k] + (b[k]-a[k])*tx
		bottom := c[k] + (d[k]-c[k])*tx
		out[k] = top + (bottom-top)*ty
	}
	return out
}

func wrapIndex(i, n int, mode WrapMode) int {
	if mode == WrapRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	return max(0, min(i, n-1))
}
