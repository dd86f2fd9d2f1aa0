package graphics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/light"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
width = 1280
max_lights = 4
debug = true
clear_color = [0.1, 0.2, 0.3, 1.0]
`))
	require.NoError(t, err)

	want := DefaultConfig()
	want.Width = 1280
	want.MaxLights = 4
	want.Debug = true
	want.ClearColor = [4]float32{0.1, 0.2, 0.3, 1}
	assert.Equal(t, want, cfg)
}

func TestParseConfigNormalizes(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		lights    int
		threshold float32
	}{
		{"too many lights", "max_lights = 50", shader.MaxLights, light.DefaultThreshold},
		{"negative lights", "max_lights = -3", 0, light.DefaultThreshold},
		{"threshold above one", "light_threshold = 2.0", 1, light.DefaultThreshold},
		{"threshold kept", "light_threshold = 0.01", 1, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.lights, cfg.MaxLights)
			assert.Equal(t, tt.threshold, cfg.LightThreshold)
		})
	}
}

func TestParseConfigRejectsMalformed(t *testing.T) {
	_, err := ParseConfig([]byte("width = "))
	assert.Error(t, err)

	_, err = ParseConfig([]byte(`width = "wide"`))
	assert.Error(t, err)
}

func TestLoadConfigReadsEncodedFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Height = 720
	cfg.FontResolution = 32
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "font_resolution = 32.0")

	path := filepath.Join(t.TempDir(), "graphics.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConfigCamera(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.Camera()
	assert.Equal(t, float32(800), c.ScreenSize.X())
	assert.Equal(t, float32(600), c.ScreenSize.Y())
	assert.Equal(t, cfg.Fov, c.Fov)
	assert.Equal(t, cfg.Near, c.Near)
	assert.Equal(t, cfg.Far, c.Far)
	assert.False(t, c.UI)
}
