package pipeline

// StateBuilderOption is a functional option used to configure a State during construction.
type StateBuilderOption func(*State)

// WithBlend enables blending with the given blend function.
//
// Parameters:
//   - fn: the blend function to use
//
// Returns:
//   - StateBuilderOption: a function that enables blending on the state
func WithBlend(fn BlendFunc) StateBuilderOption {
	return func(s *State) {
		s.BlendEnabled = true
		s.Blend = fn
	}
}

// WithDepthTest enables depth testing with the given comparison function.
//
// Parameters:
//   - fn: the depth comparison function
//
// Returns:
//   - StateBuilderOption: a function that enables depth testing on the state
func WithDepthTest(fn CompareFunc) StateBuilderOption {
	return func(s *State) {
		s.DepthTestEnabled = true
		s.DepthCompare = fn
	}
}

// WithDepthWrite sets whether fragments passing the depth test write depth.
//
// Parameters:
//   - enabled: true to write depth
//
// Returns:
//   - StateBuilderOption: a function that sets depth writes on the state
func WithDepthWrite(enabled bool) StateBuilderOption {
	return func(s *State) {
		s.DepthWriteEnabled = enabled
	}
}

// WithCulling enables back-face culling.
//
// Returns:
//   - StateBuilderOption: a function that enables culling on the state
func WithCulling() StateBuilderOption {
	return func(s *State) {
		s.CullEnabled = true
	}
}

// WithStencilTest enables the stencil test with the given comparison, reference value and mask.
//
// Parameters:
//   - fn: the stencil comparison function
//   - ref: the stencil reference value
//   - mask: the stencil read and write mask
//
// Returns:
//   - StateBuilderOption: a function that enables stencil testing on the state
func WithStencilTest(fn CompareFunc, ref, mask uint32) StateBuilderOption {
	return func(s *State) {
		s.StencilEnabled = true
		s.StencilCompare = fn
		s.StencilRef = ref
		s.StencilMask = mask
	}
}
