package window

import (
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window is a native window that hosts a WebGPU surface and feeds input events to the application.
// It satisfies renderer.SurfaceSource, so it can be passed straight to renderer.WithSurface.
//
// All methods must be called from the goroutine that created the window.
type Window interface {
	// SetFrameCallback sets the function called once per loop iteration after events were processed.
	//
	// Parameters:
	//   - callback: function receiving the time since the previous frame (or nil to disable)
	SetFrameCallback(callback func(dt time.Duration))

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the callback for key presses, repeats and releases.
	//
	// Parameters:
	//   - callback: function receiving the key, whether it is down, and the held modifiers
	SetKeyCallback(callback func(key Key, down bool, mods Modifiers))

	// SetMouseButtonCallback sets the callback for mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the button, whether it is down, and the cursor position
	SetMouseButtonCallback(callback func(button MouseButton, down bool, x, y float32))

	// SetCursorCallback sets the callback for cursor movement.
	//
	// Parameters:
	//   - callback: function receiving the cursor position in pixels
	SetCursorCallback(callback func(x, y float32))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical delta, positive away from the user
	SetScrollCallback(callback func(delta float32))

	// Input returns the polled input state.
	//
	// Returns:
	//   - *Input: the input state, updated before every frame callback
	Input() *Input

	// SetTitle changes the title bar text.
	//
	// Parameters:
	//   - title: the title
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for the platform window, created by the wgpuglfw
	// bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width returns the framebuffer width in pixels.
	Width() int

	// Height returns the framebuffer height in pixels.
	Height() int

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was already closed
	Close() error

	// Run processes events and calls the frame callback until the window is closed.
	Run()
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title string

	minWidth, minHeight int
	maxWidth, maxHeight int
	width, height       int

	// platform holds the GLFW window once created.
	platform *glfwWindow
	input    *Input

	onFrame       func(dt time.Duration)
	onResize      func(width, height int)
	onKey         func(key Key, down bool, mods Modifiers)
	onMouseButton func(button MouseButton, down bool, x, y float32)
	onCursor      func(x, y float32)
	onScroll      func(delta float32)
}

var _ Window = &engineWindow{}

func (w *engineWindow) SetFrameCallback(callback func(dt time.Duration)) {
	w.onFrame = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key Key, down bool, mods Modifiers)) {
	w.onKey = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button MouseButton, down bool, x, y float32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetCursorCallback(callback func(x, y float32)) {
	w.onCursor = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) Input() *Input {
	return w.input
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunning(w)
}

func (w *engineWindow) Close() error {
	return platformClose(w)
}

func (w *engineWindow) Run() {
	last := time.Now()
	for w.IsRunning() {
		if !platformPollEvents(w) {
			break
		}

		now := time.Now()
		if w.onFrame != nil {
			w.onFrame(now.Sub(last))
		}
		last = now

		runtime.Gosched()
	}
}
