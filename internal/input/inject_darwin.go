//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

bool hasAccessibilityPermissions() {
    return AXIsProcessTrusted();
}

void postMouse(CGEventType type, double x, double y, CGMouseButton button) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, CGPointMake(x, y), button);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

void postScroll(double x, double y, int step) {
    postMouse(kCGEventMouseMoved, x, y, kCGMouseButtonLeft);
    CGEventRef event = CGEventCreateScrollWheelEvent(NULL, kCGScrollEventUnitLine, 1, step);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

void postKey(CGKeyCode keyCode, bool down) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, keyCode, down);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}
*/
import "C"
import (
	"errors"
	"fmt"
)

var errNoAccessibility = errors.New("accessibility permission not granted")

// macKeyCodes maps canonical key names to CGKeyCode values
var macKeyCodes = map[string]C.CGKeyCode{
	"a": 0x00, "b": 0x0B, "c": 0x08, "d": 0x02, "e": 0x0E, "f": 0x03, "g": 0x05,
	"h": 0x04, "i": 0x22, "j": 0x26, "k": 0x28, "l": 0x25, "m": 0x2E, "n": 0x2D,
	"o": 0x1F, "p": 0x23, "q": 0x0C, "r": 0x0F, "s": 0x01, "t": 0x11, "u": 0x20,
	"v": 0x09, "w": 0x0D, "x": 0x07, "y": 0x10, "z": 0x06,

	"0": 0x1D, "1": 0x12, "2": 0x13, "3": 0x14, "4": 0x15,
	"5": 0x17, "6": 0x16, "7": 0x1A, "8": 0x1C, "9": 0x19,

	"f1": 0x7A, "f2": 0x78, "f3": 0x63, "f4": 0x76, "f5": 0x60, "f6": 0x61,
	"f7": 0x62, "f8": 0x64, "f9": 0x65, "f10": 0x6D, "f11": 0x67, "f12": 0x6F,

	"backspace": 0x33, "tab": 0x30, "enter": 0x24, "shift": 0x38, "ctrl": 0x3B,
	"alt": 0x3A, "esc": 0x35, "space": 0x31,
	"left": 0x7B, "up": 0x7E, "right": 0x7C, "down": 0x7D,
	"page_up": 0x74, "page_down": 0x79, "end": 0x77, "home": 0x73,
	"insert": 0x72, "delete": 0x75,

	";": 0x29, "=": 0x18, ",": 0x2B, "-": 0x1B, ".": 0x2F, "/": 0x2C,
	"`": 0x32, "[": 0x21, "\\": 0x2A, "]": 0x1E, "'": 0x27,
}

// Native injects input through CoreGraphics events
type Native struct{}

// NewNative creates the platform injector
func NewNative() *Native {
	return &Native{}
}

func (n *Native) MoveCursor(x, y int) error {
	if !C.hasAccessibilityPermissions() {
		return errNoAccessibility
	}
	C.postMouse(C.kCGEventMouseMoved, C.double(x), C.double(y), C.kCGMouseButtonLeft)
	return nil
}

func (n *Native) Button(x, y, button int, down bool) error {
	var (
		cgButton  C.CGMouseButton
		eventType C.CGEventType
	)
	switch button {
	case 1:
		cgButton = C.kCGMouseButtonLeft
		eventType = C.kCGEventLeftMouseUp
		if down {
			eventType = C.kCGEventLeftMouseDown
		}
	case 2:
		cgButton = C.kCGMouseButtonRight
		eventType = C.kCGEventRightMouseUp
		if down {
			eventType = C.kCGEventRightMouseDown
		}
	case 3:
		cgButton = C.kCGMouseButtonCenter
		eventType = C.kCGEventOtherMouseUp
		if down {
			eventType = C.kCGEventOtherMouseDown
		}
	default:
		return fmt.Errorf("invalid button number: %d", button)
	}
	if !C.hasAccessibilityPermissions() {
		return errNoAccessibility
	}
	C.postMouse(eventType, C.double(x), C.double(y), cgButton)
	return nil
}

func (n *Native) Key(name string, down bool) error {
	code, ok := macKeyCodes[name]
	if !ok {
		return fmt.Errorf("unknown key name %q", name)
	}
	if !C.hasAccessibilityPermissions() {
		return errNoAccessibility
	}
	C.postKey(code, C.bool(down))
	return nil
}

func (n *Native) Scroll(x, y, step int) error {
	if !C.hasAccessibilityPermissions() {
		return errNoAccessibility
	}
	C.postScroll(C.double(x), C.double(y), C.int(step))
	return nil
}
