// Package macro defines recorded input events and the .mcr text format.
package macro

import (
	"fmt"
)

// Kind identifies the type of a recorded input event
type Kind int

const (
	KeyDown Kind = iota
	KeyUp
	MouseMove
	MouseDown
	MouseUp
	MouseScroll
)

var kindCodes = [...]string{
	KeyDown:     "KDOWN",
	KeyUp:       "KUP",
	MouseMove:   "MMOVE",
	MouseDown:   "MDOWN",
	MouseUp:     "MUP",
	MouseScroll: "MSCROLL",
}

// String returns the short code used in .mcr files
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindCodes) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindCodes[k]
}

// ParseKind maps a short code back to its Kind
func ParseKind(code string) (Kind, bool) {
	for k, c := range kindCodes {
		if c == code {
			return Kind(k), true
		}
	}
	return 0, false
}

// Mouse button codes
const (
	ButtonUnknown = 0
	ButtonLeft    = 1
	ButtonRight   = 2
	ButtonMiddle  = 3
)

// Point is a screen position in pixels
type Point struct {
	X, Y int
}

// Payload carries the kind-specific attributes of an Event.
// It is one of Key, Move, Button or Scroll.
type Payload interface {
	payload()
}

// Key is the payload of KeyDown and KeyUp events
type Key struct {
	// Name is the canonical key name; empty when unknown
	Name string
}

// Move is the payload of MouseMove events
type Move struct {
	Pos *Point
}

// Button is the payload of MouseDown and MouseUp events
type Button struct {
	// Code is 1=left, 2=right, 3=middle; anything else is unknown
	Code int
	Pos  *Point
}

// Scroll is the payload of MouseScroll events
type Scroll struct {
	// Delta is the raw signed wheel delta. Only its sign survives encoding.
	Delta int
	Pos   *Point
}

func (Key) payload()    {}
func (Move) payload()   {}
func (Button) payload() {}
func (Scroll) payload() {}

// Event is a single timestamped input event
type Event struct {
	// Timestamp is seconds since the start of the timeline
	Timestamp float64
	Kind      Kind
	Payload   Payload

	// Extra holds unrecognized key=value fields read from a file. It is never written back.
	Extra map[string]string
}

// NewKey creates a KeyDown or KeyUp event
func NewKey(ts float64, down bool, name string) Event {
	kind := KeyUp
	if down {
		kind = KeyDown
	}
	return Event{Timestamp: ts, Kind: kind, Payload: Key{Name: name}}
}

// NewMove creates a MouseMove event
func NewMove(ts float64, x, y int) Event {
	return Event{Timestamp: ts, Kind: MouseMove, Payload: Move{Pos: &Point{X: x, Y: y}}}
}

// NewButton creates a MouseDown or MouseUp event
func NewButton(ts float64, down bool, code, x, y int) Event {
	kind := MouseUp
	if down {
		kind = MouseDown
	}
	return Event{Timestamp: ts, Kind: kind, Payload: Button{Code: code, Pos: &Point{X: x, Y: y}}}
}

// NewScroll creates a MouseScroll event
func NewScroll(ts float64, delta, x, y int) Event {
	return Event{Timestamp: ts, Kind: MouseScroll, Payload: Scroll{Delta: delta, Pos: &Point{X: x, Y: y}}}
}

// KeyName returns the key name of a keyboard event
func (e Event) KeyName() (string, bool) {
	k, ok := e.Payload.(Key)
	if !ok || k.Name == "" {
		return "", false
	}
	return k.Name, true
}

// Position returns the pointer position of a mouse event, if recorded
func (e Event) Position() (Point, bool) {
	var pos *Point
	switch p := e.Payload.(type) {
	case Move:
		pos = p.Pos
	case Button:
		pos = p.Pos
	case Scroll:
		pos = p.Pos
	}
	if pos == nil {
		return Point{}, false
	}
	return *pos, true
}

// IsMouseMove reports whether the event is a pointer movement
func (e Event) IsMouseMove() bool {
	return e.Kind == MouseMove
}

func buttonName(code int) string {
	switch code {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	}
	return "unknown"
}

func parseButtonName(name string) int {
	switch name {
	case "left":
		return ButtonLeft
	case "right":
		return ButtonRight
	case "middle":
		return ButtonMiddle
	}
	return ButtonUnknown
}

func buttonLabel(code int) string {
	switch code {
	case ButtonLeft:
		return "Left"
	case ButtonRight:
		return "Right"
	case ButtonMiddle:
		return "Middle"
	}
	return "Unknown"
}
