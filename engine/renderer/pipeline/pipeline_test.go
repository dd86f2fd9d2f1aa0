package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	assert.False(t, s.BlendEnabled)
	assert.False(t, s.DepthTestEnabled)
	assert.False(t, s.CullEnabled)
	assert.False(t, s.StencilEnabled)
	assert.Equal(t, uint32(0xFF), s.StencilMask)
	assert.False(t, s.DepthWrites())
	assert.Nil(t, s.WGPUBlendState())
	assert.Equal(t, wgpu.CullModeNone, s.WGPUCullMode())
}

func TestStateKeyIgnoresStencilRef(t *testing.T) {
	a := NewState(WithStencilTest(CompareEqual, 1, 0xFF))
	b := NewState(WithStencilTest(CompareEqual, 7, 0xFF))
	assert.Equal(t, a.Key(), b.Key())

	c := NewState(WithStencilTest(CompareNotEqual, 1, 0xFF))
	assert.NotEqual(t, a.Key(), c.Key())
	assert.NotEqual(t, DefaultState().Key(), NewState(WithCulling()).Key())
}

func TestBlendFactors(t *testing.T) {
	tests := []struct {
		fn       BlendFunc
		src, dst wgpu.BlendFactor
	}{
		{BlendAlpha, wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha},
		{BlendDestinationAlpha, wgpu.BlendFactorOneMinusDstAlpha, wgpu.BlendFactorDstAlpha},
		{BlendAdditive, wgpu.BlendFactorOne, wgpu.BlendFactorOne},
	}
	for _, tt := range tests {
		bs := NewState(WithBlend(tt.fn)).WGPUBlendState()
		require.NotNil(t, bs)
		assert.Equal(t, tt.src, bs.Color.SrcFactor)
		assert.Equal(t, tt.dst, bs.Color.DstFactor)
	}
}

func TestDepthStencilState(t *testing.T) {
	assert.Nil(t, DefaultState().WGPUDepthStencilState(wgpu.TextureFormatUndefined, false))

	s := NewState(WithDepthTest(CompareLessEqual), WithStencilTest(CompareEqual, 1, 0x0F))
	ds := s.WGPUDepthStencilState(wgpu.TextureFormatDepth24PlusStencil8, true)
	require.NotNil(t, ds)
	assert.True(t, ds.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, ds.DepthCompare)
	assert.Equal(t, wgpu.CompareFunctionEqual, ds.StencilFront.Compare)
	assert.Equal(t, wgpu.StencilOperationReplace, ds.StencilFront.PassOp)
	assert.Equal(t, uint32(0x0F), ds.StencilWriteMask)

	// stencil is ignored on a depth-only attachment
	ds = s.WGPUDepthStencilState(wgpu.TextureFormatDepth32Float, false)
	assert.Equal(t, wgpu.CompareFunctionAlways, ds.StencilFront.Compare)
	assert.Zero(t, ds.StencilWriteMask)
}

func TestCompare(t *testing.T) {
	assert.True(t, CompareLess.Compare(0.2, 0.5))
	assert.False(t, CompareLess.Compare(0.5, 0.5))
	assert.True(t, CompareLessEqual.Compare(0.5, 0.5))
	assert.True(t, CompareGreater.Compare(0.6, 0.5))
	assert.True(t, CompareGreaterEqual.Compare(0.5, 0.5))
	assert.True(t, CompareEqual.Compare(1, 1))
	assert.True(t, CompareNotEqual.Compare(1, 0))
	assert.True(t, CompareAlways.Compare(9, 0))
}
