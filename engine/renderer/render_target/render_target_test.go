package render_target

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(64, 48))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestNewRenderTargetAttachments(t *testing.T) {
	r := newTestRenderer(t)

	target, err := NewRenderTarget(r, "gbuffer", 256, 256, WithAttachments(2), WithDepth(renderer.DepthOnly))
	require.NoError(t, err)

	w, h := target.Size()
	assert.Equal(t, 256, w)
	assert.Equal(t, 256, h)
	require.Len(t, target.ColorAttachments(), 2)
	for i, c := range target.ColorAttachments() {
		cw, ch, _ := c.Size()
		assert.Equal(t, 256, cw, "attachment %d", i)
		assert.Equal(t, 256, ch, "attachment %d", i)
		assert.Equal(t, renderer.TextureDimension2D, c.Dimension())
	}
	assert.Nil(t, target.ColorAttachment(2))
	assert.Nil(t, target.ColorAttachment(-1))
	assert.Equal(t, renderer.DepthOnly, target.DepthPolicy())
	assert.Equal(t, 2, r.Stats().Textures)
	assert.Equal(t, 1, r.Stats().RenderTargets)

	target.Release()
	assert.Equal(t, 0, r.Stats().Textures)
	assert.Equal(t, 0, r.Stats().RenderTargets)
	assert.Equal(t, 0, r.LiveHandles())
}

func TestBindSetsViewport(t *testing.T) {
	r := newTestRenderer(t)

	target, err := NewRenderTarget(r, "small", 16, 8)
	require.NoError(t, err)
	defer target.Release()

	target.Bind()
	x, y, w, h := r.Viewport()
	assert.Equal(t, []int{0, 0, 16, 8}, []int{x, y, w, h})

	target.Unbind()
	x, y, w, h = r.Viewport()
	assert.Equal(t, []int{0, 0, 64, 48}, []int{x, y, w, h})
}

func TestIncompleteTarget(t *testing.T) {
	r := newTestRenderer(t)

	_, err := NewRenderTarget(r, "nothing", 4, 4, WithAttachments(0), WithDepth(renderer.DepthNone))
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 0, r.LiveHandles())

	_, err = NewRenderTarget(r, "bad channels", 4, 4, WithChannels(9))
	assert.Error(t, err)
	assert.Equal(t, 0, r.LiveHandles())
}

func TestClearAndReadBack(t *testing.T) {
	r := newTestRenderer(t)

	target, err := NewRenderTarget(r, "mrt", 4, 4, WithAttachments(2), WithDepth(renderer.DepthStencil))
	require.NoError(t, err)
	defer target.Release()

	target.Bind()
	r.SetClearColor([4]float32{1, 0, 0, 1})
	r.Clear(renderer.ClearAll)
	target.Unbind()

	for i := 0; i < 2; i++ {
		px, err := target.ReadPixels(i, 3, 3, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []byte{255, 0, 0, 255}, px, "attachment %d", i)
	}
	_, err = target.ReadPixels(2, 0, 0, 1, 1)
	assert.Error(t, err)
}

func TestBlitDepthFrom(t *testing.T) {
	r := newTestRenderer(t)

	src, err := NewRenderTarget(r, "src", 8, 8, WithDepth(renderer.DepthStencil))
	require.NoError(t, err)
	defer src.Release()
	dst, err := NewRenderTarget(r, "dst", 4, 4, WithDepth(renderer.DepthStencil))
	require.NoError(t, err)
	defer dst.Release()
	noDepth, err := NewRenderTarget(r, "color only", 4, 4, WithDepth(renderer.DepthNone))
	require.NoError(t, err)
	defer noDepth.Release()

	assert.NoError(t, dst.BlitDepthFrom(src, true))
	assert.ErrorIs(t, noDepth.BlitDepthFrom(src, false), renderer.ErrUnsupported)
	assert.Error(t, dst.BlitDepthFrom(nil, false))
}
