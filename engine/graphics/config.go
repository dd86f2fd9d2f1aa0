package graphics

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-gfx/engine/camera"
	"github.com/Carmen-Shannon/oxy-gfx/engine/font"
	"github.com/Carmen-Shannon/oxy-gfx/engine/light"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/pelletier/go-toml/v2"
)

// Config holds the tunables of a Graphics context. It is read from TOML with snake_case keys; keys absent from
// the file keep their DefaultConfig values.
type Config struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// MaxLights caps AddLight. It is clamped to the shader light array size.
	MaxLights int `toml:"max_lights"`

	// LightThreshold is the fraction of nominal intensity at which a point light's radius is measured.
	LightThreshold float32 `toml:"light_threshold"`

	Fov  float32 `toml:"fov"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`

	ClearColor [4]float32 `toml:"clear_color"`

	// Debug enables state and uniform tracking reported through the Observer.
	Debug bool `toml:"debug"`

	FontResolution   float32 `toml:"font_resolution"`
	FontTextureSize  int     `toml:"font_texture_size"`
	FontOversampling int     `toml:"font_oversampling"`
}

// DefaultConfig returns the configuration used when none is supplied.
//
// Returns:
//   - Config: the defaults
func DefaultConfig() Config {
	return Config{
		Width:            800,
		Height:           600,
		MaxLights:        1,
		LightThreshold:   light.DefaultThreshold,
		Fov:              math32.Pi / 3,
		Near:             0.1,
		Far:              200,
		ClearColor:       [4]float32{0, 0, 0, 1},
		FontResolution:   50,
		FontTextureSize:  1024,
		FontOversampling: 2,
	}
}

// ParseConfig decodes TOML over DefaultConfig and normalizes the result.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the configuration
//   - error: an error if the document is malformed
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("graphics config: %w", err)
	}
	return cfg.normalized(), nil
}

// LoadConfig reads and parses a TOML configuration file.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the configuration
//   - error: an error if the file cannot be read or parsed
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("graphics config: %w", err)
	}
	return ParseConfig(data)
}

// Encode writes the configuration as TOML.
//
// Returns:
//   - []byte: the document
//   - error: an error if encoding fails
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Camera builds a camera from the configured screen size and projection parameters.
//
// Parameters:
//   - options: camera options applied after the configured ones
//
// Returns:
//   - camera.Camera: the camera
func (c Config) Camera(options ...camera.CameraBuilderOption) camera.Camera {
	opts := []camera.CameraBuilderOption{
		camera.WithScreenSize(float32(c.Width), float32(c.Height)),
		camera.WithFov(c.Fov),
		camera.WithClipPlanes(c.Near, c.Far),
	}
	return camera.NewCamera(append(opts, options...)...)
}

func (c Config) fontOptions() []font.FontBuilderOption {
	return []font.FontBuilderOption{
		font.WithResolution(c.FontResolution),
		font.WithTextureSize(c.FontTextureSize),
		font.WithOversampling(c.FontOversampling),
	}
}

func (c Config) normalized() Config {
	c.MaxLights = min(max(c.MaxLights, 0), shader.MaxLights)
	if c.LightThreshold <= 0 || c.LightThreshold >= 1 {
		c.LightThreshold = light.DefaultThreshold
	}
	return c
}
