package common

import (
	"image"
	"image/color"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

type named interface{ Name() string }

type namedImpl struct{ name string }

func (n *namedImpl) Name() string { return n.name }

func TestRefKind(t *testing.T) {
	var none Ref[named]
	assert.Equal(t, RefNone, none.Kind())
	assert.False(t, none.Present())

	byName := NameRef[named]("default")
	assert.Equal(t, RefName, byName.Kind())
	assert.True(t, byName.Present())

	h := &namedImpl{name: "x"}
	byHandle := HandleRef[named](h)
	assert.Equal(t, RefHandle, byHandle.Kind())

	both := Ref[named]{Name: "other", Handle: h}
	assert.Equal(t, RefHandle, both.Kind())

	assert.True(t, byHandle.Equal(HandleRef[named](h)))
	assert.False(t, byHandle.Equal(HandleRef[named](&namedImpl{name: "x"})))
	assert.True(t, byName.Equal(NameRef[named]("default")))
}

func TestByteHelpers(t *testing.T) {
	buf := make([]byte, 16)
	PutFloat32s(buf, 0, 1.5, -2)
	PutInt32(buf, 8, -7)
	assert.Equal(t, float32(1.5), Float32At(buf, 0))
	assert.Equal(t, float32(-2), Float32At(buf, 4))
	assert.Equal(t, int32(-7), Int32At(buf, 8))

	// out of range writes and reads are ignored
	PutFloat32s(buf, 14, 3)
	assert.Equal(t, float32(0), Float32At(buf, 14))
	assert.Equal(t, []float32{1.5, -2}, BytesToFloat32s(buf[:8]))
	assert.Len(t, SliceToBytes([]float32{1, 2, 3}), 12)
}

func TestClipSpaceCorrection(t *testing.T) {
	// near plane maps to 0, far plane maps to 1
	p := ClipSpaceCorrection.Mul4(mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100))
	near := TransformPoint(p, mgl32.Vec3{0, 0, -0.1})
	far := TransformPoint(p, mgl32.Vec3{0, 0, -100})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-5)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-4)
}

func TestImageToRGBA(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(1, 0, color.Gray{Y: 200})
	data := ImageToRGBA(img)
	assert.Equal(t, 2, data.Width)
	assert.Equal(t, 1, data.Height)
	assert.Equal(t, []byte{0, 0, 0, 255, 200, 200, 200, 255}, data.Pixels)
}

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 1, DataTypeUnsignedByte.Size())
	assert.Equal(t, 4, DataTypeFloat.Size())
	assert.Equal(t, 4, DataTypeInt.Size())
	assert.Equal(t, 0, DataType(42).Size())
}
