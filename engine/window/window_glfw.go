package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrClosed is returned when closing a window that is not open.
var ErrClosed = errors.New("window is closed")

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	window  *glfw.Window
	running bool
}

// newPlatformWindow creates the GLFW window, wires its callbacks to w and stores it as w.platform.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	gw := &glfwWindow{window: win, running: true}
	w.platform = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		down := action != glfw.Release
		w.input.setKey(Key(key), down)
		if w.onKey != nil {
			w.onKey(Key(key), down, modifiers(mods))
		}
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		down := action != glfw.Release
		w.input.setButton(MouseButton(button), down)
		if w.onMouseButton != nil {
			x, y := win.GetCursorPos()
			w.onMouseButton(MouseButton(button), down, float32(x), float32(y))
		}
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		w.input.moveCursor(mgl32.Vec2{float32(x), float32(y)})
		if w.onCursor != nil {
			w.onCursor(float32(x), float32(y))
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		w.input.addScroll(float32(yoff))
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	// The framebuffer size is what the surface is configured with; on high-DPI displays it differs from the
	// window size.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})

	w.width, w.height = win.GetFramebufferSize()
	return nil
}

func modifiers(mods glfw.ModifierKey) Modifiers {
	var m Modifiers
	if mods&glfw.ModShift != 0 {
		m |= ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= ModControl
	}
	if mods&glfw.ModAlt != 0 {
		m |= ModAlt
	}
	if mods&glfw.ModSuper != 0 {
		m |= ModSuper
	}
	return m
}

// platformSurfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor from the GLFW window.
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.platform.window)
}

func platformSetTitle(w *engineWindow, title string) {
	if w.platform != nil {
		w.platform.window.SetTitle(title)
	}
}

func platformIsRunning(w *engineWindow) bool {
	if w.platform == nil {
		return false
	}
	return w.platform.running && !w.platform.window.ShouldClose()
}

func platformClose(w *engineWindow) error {
	if w.platform == nil {
		return ErrClosed
	}
	w.platform.running = false
	w.platform.window.Destroy()
	w.platform = nil
	glfw.Terminate()
	return nil
}

// platformPollEvents processes pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformPollEvents(w *engineWindow) bool {
	glfw.PollEvents()
	return platformIsRunning(w)
}
