//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef eventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFMachPortRef tapPort;
static CFRunLoopRef tapLoop;

static inline bool createEventTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
        CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged);
    tapPort = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        eventCallback,
        (void*)refcon
    );
    return tapPort != NULL;
}

static inline void runEventTap() {
    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tapPort, 0);
    tapLoop = CFRunLoopGetCurrent();
    CFRunLoopAddSource(tapLoop, source, kCFRunLoopCommonModes);
    CGEventTapEnable(tapPort, true);
    CFRunLoopRun();
    CGEventTapEnable(tapPort, false);
    CFRunLoopRemoveSource(tapLoop, source, kCFRunLoopCommonModes);
    CFRelease(source);
    CFRelease(tapPort);
    tapPort = NULL;
    tapLoop = NULL;
}

static inline void stopEventTap() {
    if (tapLoop) {
        CFRunLoopStop(tapLoop);
    }
}
*/
import "C"
import (
	"errors"
	"log"
	"runtime"
	"runtime/cgo"
	"unsafe"
)

type platformState struct {
	handle cgo.Handle
	done   chan struct{}
}

//export eventCallback
func eventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	m := cgo.Handle(uintptr(refcon)).Value().(*Manager)
	keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		if name := macKeyNames[keyCode]; name != "" {
			m.UpdateState(name, eventType == C.kCGEventKeyDown)
		}
	case C.kCGEventFlagsChanged:
		flags := C.CGEventGetFlags(event)
		switch keyCode {
		case 55, 54:
			m.UpdateState("CMD", flags&C.kCGEventFlagMaskCommand != 0)
		case 56, 60:
			m.UpdateState("SHIFT", flags&C.kCGEventFlagMaskShift != 0)
		case 58, 61:
			m.UpdateState("ALT", flags&C.kCGEventFlagMaskAlternate != 0)
		case 59, 62:
			m.UpdateState("CTRL", flags&C.kCGEventFlagMaskControl != 0)
		}
	}
	return event
}

func (m *Manager) startPlatform() error {
	m.platform.handle = cgo.NewHandle(m)
	m.platform.done = make(chan struct{})
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(m.platform.done)

		if !C.createEventTap(C.uintptr_t(m.platform.handle)) {
			ready <- errors.New("failed to create CGEventTap, accessibility permission missing?")
			return
		}
		ready <- nil
		log.Println("Hotkey Engine: macOS CGEventTap started.")
		C.runEventTap()
	}()

	if err := <-ready; err != nil {
		m.platform.handle.Delete()
		m.platform = platformState{}
		return err
	}
	return nil
}

func (m *Manager) stopPlatform() {
	if m.platform.done == nil {
		return
	}
	C.stopEventTap()
	<-m.platform.done
	m.platform.handle.Delete()
	m.platform = platformState{}
}

// macKeyNames maps macOS virtual key codes to hotkey names
var macKeyNames = map[uint16]string{
	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P", 12: "Q",
	15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z",

	29: "0", 18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6", 26: "7", 28: "8", 25: "9",

	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",

	49: "SPACE", 36: "ENTER", 53: "ESC", 51: "BACKSPACE", 48: "TAB",
	123: "LEFT", 126: "UP", 124: "RIGHT", 125: "DOWN",
	116: "PAGEUP", 121: "PAGEDOWN", 115: "HOME", 119: "END", 117: "DELETE",
}
