package shader

import (
	_ "embed"
)

// GPUTransformsSource is the canonical WGSL definition of the Transforms struct.
// Three column-major mat4x4<f32> (model, view, projection), 192 bytes.
//
//go:embed assets/transforms.wgsl
var GPUTransformsSource string

// GPUMaterialSource is the canonical WGSL definition of the Material struct (64 bytes).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUFontSource is the canonical WGSL definition of the Font struct (24 bytes).
//
//go:embed assets/font.wgsl
var GPUFontSource string

// GPULightSource is the canonical WGSL definition of the Light struct (64 bytes) and the light kind constants.
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPUSceneSource is the canonical WGSL definition of the Scene struct: material, font, a fixed array of
// MaxLights lights and the light count. Requires Material, Font and Light.
//
//go:embed assets/scene.wgsl
var GPUSceneSource string

// DefaultSource is the engine's default shader. Both stages live in one module with entry points
// vs_main and fs_main.
//
//go:embed assets/default.wgsl
var DefaultSource string

// MaxLights is the length of the lights array in the Scene struct.
const MaxLights = 8
