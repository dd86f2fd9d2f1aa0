package window

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Key is a keyboard key. Values match GLFW key codes, which use ASCII for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
type Key int

const (
	KeySpace Key = 32
	Key0     Key = 48
	Key1     Key = 49
	Key2     Key = 50
	Key3     Key = 51
	Key4     Key = 52
	Key5     Key = 53
	Key6     Key = 54
	Key7     Key = 55
	Key8     Key = 56
	Key9     Key = 57
	KeyA     Key = 65
	KeyB     Key = 66
	KeyC     Key = 67
	KeyD     Key = 68
	KeyE     Key = 69
	KeyF     Key = 70
	KeyG     Key = 71
	KeyL     Key = 76
	KeyM     Key = 77
	KeyQ     Key = 81
	KeyS     Key = 83
	KeyT     Key = 84
	KeyV     Key = 86
	KeyW     Key = 87
	KeyX     Key = 88

	KeyEscape    Key = 256
	KeyEnter     Key = 257
	KeyTab       Key = 258
	KeyBackspace Key = 259
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265

	KeyLeftShift    Key = 340
	KeyLeftControl  Key = 341
	KeyRightShift   Key = 344
	KeyRightControl Key = 345
)

// MouseButton is a mouse button. Values match GLFW button numbers.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Modifiers is the set of modifier keys held during an event.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// Input accumulates key, button and cursor state from window events so frame code can poll it.
// It is owned by the window goroutine.
type Input struct {
	keys    map[Key]bool
	buttons map[MouseButton]bool
	cursor  mgl32.Vec2
	drag    mgl32.Vec2
	scroll  float32
}

func newInput() *Input {
	return &Input{
		keys:    make(map[Key]bool),
		buttons: make(map[MouseButton]bool),
	}
}

func (in *Input) setKey(k Key, down bool) {
	in.keys[k] = down
}

func (in *Input) setButton(b MouseButton, down bool) {
	in.buttons[b] = down
}

func (in *Input) moveCursor(p mgl32.Vec2) {
	for _, down := range in.buttons {
		if down {
			in.drag = in.drag.Add(p.Sub(in.cursor))
			break
		}
	}
	in.cursor = p
}

func (in *Input) addScroll(delta float32) {
	in.scroll += delta
}

// KeyDown reports whether a key is held.
func (in *Input) KeyDown(k Key) bool {
	return in.keys[k]
}

// ButtonDown reports whether a mouse button is held.
func (in *Input) ButtonDown(b MouseButton) bool {
	return in.buttons[b]
}

// Cursor returns the last cursor position in pixels, origin at the top-left.
func (in *Input) Cursor() mgl32.Vec2 {
	return in.cursor
}

// Axis maps a pair of keys to -1, 0 or 1.
//
// Parameters:
//   - negative: the key that pulls toward -1
//   - positive: the key that pulls toward 1
//
// Returns:
//   - float32: the axis value
func (in *Input) Axis(negative, positive Key) float32 {
	var v float32
	if in.keys[negative] {
		v--
	}
	if in.keys[positive] {
		v++
	}
	return v
}

// ConsumeDrag returns the cursor travel while any button was held since the last call, and resets it.
func (in *Input) ConsumeDrag() mgl32.Vec2 {
	d := in.drag
	in.drag = mgl32.Vec2{}
	return d
}

// ConsumeScroll returns the scroll accumulated since the last call, and resets it.
func (in *Input) ConsumeScroll() float32 {
	s := in.scroll
	in.scroll = 0
	return s
}
