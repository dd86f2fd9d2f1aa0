package light

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestPointLightRadius(t *testing.T) {
	l := NewLight(LightTypePoint, WithAttenuation(0.1, 0.01))
	r := l.Radius(DefaultThreshold)
	assert.Greater(t, r, float32(0))

	a, b := l.Attenuation.X(), l.Attenuation.Y()
	assert.InDelta(t, 1, DefaultThreshold*(b*r*r+a*r+1), 1e-3)
}

func TestLinearOnlyRadius(t *testing.T) {
	l := NewLight(LightTypePoint, WithAttenuation(0.5, 0))
	r := l.Radius(DefaultThreshold)
	assert.InDelta(t, 38, r, 1e-3)
	assert.False(t, math32.IsNaN(r))
}

func TestUnboundedRadius(t *testing.T) {
	assert.Equal(t, Unbounded, NewLight(LightTypePoint).Radius(DefaultThreshold))
	assert.Equal(t, Unbounded, NewLight(LightTypeDirectional, WithAttenuation(1, 1)).Radius(DefaultThreshold))
	assert.Equal(t, Unbounded, NewLight(LightTypeAmbient).Radius(DefaultThreshold))

	// negative quadratic falloff with a negative discriminant
	l := NewLight(LightTypePoint, WithAttenuation(0.1, -1))
	r := l.Radius(DefaultThreshold)
	assert.Equal(t, Unbounded, r)
	assert.False(t, math32.IsNaN(r))
}

func TestNewLightDefaults(t *testing.T) {
	l := NewLight(LightTypeDirectional)
	assert.InDelta(t, 1, l.Direction.Len(), 1e-6)
	assert.InDelta(t, -1/math32.Sqrt(3), l.Direction.X(), 1e-6)
	assert.Equal(t, float32(1), l.Color.Y())

	l = NewLight(LightTypeDirectional, WithDirection(0, 0, 0))
	assert.Equal(t, float32(0), l.Direction.Len())
}
