// Package input provides global input capture and OS input injection for macro
// recording and playback.
package input

import (
	"errors"
	"fmt"

	"github.com/nqd1/MacroRecorder/internal/macro"
)

// ErrUnsupported is returned by capture and injection on platforms without a backend
var ErrUnsupported = errors.New("input: not supported on this platform")

// Capture delivers recorded events from a global input hook
type Capture interface {
	Start() error
	Stop() error
	Events() <-chan macro.Event
}

// Injector synthesizes OS input. Positions are absolute screen pixels.
type Injector interface {
	MoveCursor(x, y int) error
	Button(x, y, button int, down bool) error
	Key(name string, down bool) error
	Scroll(x, y, step int) error
}

// Command is a single injection request derived from a recorded event
type Command interface {
	Apply(inj Injector) error
	String() string
}

// MoveCursor moves the pointer to an absolute position
type MoveCursor struct {
	X, Y int
}

// ButtonEvent presses or releases a mouse button at a position
type ButtonEvent struct {
	X, Y   int
	Button int
	Down   bool
}

// KeyEvent presses or releases a named key
type KeyEvent struct {
	Name string
	Down bool
}

// ScrollEvent turns the wheel by Step notches at a position
type ScrollEvent struct {
	X, Y int
	Step int
}

func (c MoveCursor) Apply(inj Injector) error  { return inj.MoveCursor(c.X, c.Y) }
func (c ButtonEvent) Apply(inj Injector) error { return inj.Button(c.X, c.Y, c.Button, c.Down) }
func (c KeyEvent) Apply(inj Injector) error    { return inj.Key(c.Name, c.Down) }
func (c ScrollEvent) Apply(inj Injector) error { return inj.Scroll(c.X, c.Y, c.Step) }

func (c MoveCursor) String() string {
	return fmt.Sprintf("move(%d, %d)", c.X, c.Y)
}

func (c ButtonEvent) String() string {
	return fmt.Sprintf("button %d %s at (%d, %d)", c.Button, upDown(c.Down), c.X, c.Y)
}

func (c KeyEvent) String() string {
	return fmt.Sprintf("key %q %s", c.Name, upDown(c.Down))
}

func (c ScrollEvent) String() string {
	return fmt.Sprintf("scroll %+d at (%d, %d)", c.Step, c.X, c.Y)
}

func upDown(down bool) string {
	if down {
		return "down"
	}
	return "up"
}

// CommandFor converts a recorded event into the command that replays it.
// Events missing the attributes their kind needs yield false.
func CommandFor(e macro.Event) (Command, bool) {
	switch p := e.Payload.(type) {
	case macro.Key:
		if p.Name == "" {
			return nil, false
		}
		return KeyEvent{Name: p.Name, Down: e.Kind == macro.KeyDown}, true
	case macro.Move:
		if p.Pos == nil {
			return nil, false
		}
		return MoveCursor{X: p.Pos.X, Y: p.Pos.Y}, true
	case macro.Button:
		if p.Pos == nil {
			return nil, false
		}
		return ButtonEvent{X: p.Pos.X, Y: p.Pos.Y, Button: p.Code, Down: e.Kind == macro.MouseDown}, true
	case macro.Scroll:
		if p.Pos == nil {
			return nil, false
		}
		step := -1
		if p.Delta > 0 {
			step = 1
		}
		return ScrollEvent{X: p.Pos.X, Y: p.Pos.Y, Step: step}, true
	}
	return nil, false
}
