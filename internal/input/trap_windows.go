//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessage     = user32.NewProc("DispatchMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procSetCursorPos        = user32.NewProc("SetCursorPos")
	procSendInput           = user32.NewProc("SendInput")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msLLHookStruct struct {
	Pt          struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    syscall.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// Callbacks are created once; the runtime caps the number of NewCallback calls.
var (
	keyboardCallback = syscall.NewCallback(keyboardProc)
	mouseCallback    = syscall.NewCallback(mouseProc)
)

type hookState struct {
	threadID     uint32
	keyboardHook uintptr
	mouseHook    uintptr
	done         chan struct{}
}

// install runs the hooks on a dedicated OS thread with its own message loop
func (t *Trap) install() error {
	ready := make(chan error, 1)
	t.hooks.done = make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.hooks.done)

		t.hooks.threadID = windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)

		kh, _, err := procSetWindowsHookEx.Call(whKeyboardLL, keyboardCallback, hMod, 0)
		if kh == 0 {
			ready <- fmt.Errorf("install keyboard hook: %v", err)
			return
		}
		mh, _, err := procSetWindowsHookEx.Call(whMouseLL, mouseCallback, hMod, 0)
		if mh == 0 {
			procUnhookWindowsHookEx.Call(kh)
			ready <- fmt.Errorf("install mouse hook: %v", err)
			return
		}
		t.hooks.keyboardHook, t.hooks.mouseHook = kh, mh
		ready <- nil

		var msg winMsg
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
			procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
			procDispatchMessage.Call(uintptr(unsafe.Pointer(&msg)))
		}

		procUnhookWindowsHookEx.Call(kh)
		procUnhookWindowsHookEx.Call(mh)
	}()

	return <-ready
}

func (t *Trap) uninstall() {
	if t.hooks.done == nil {
		return
	}
	ret, _, err := procPostThreadMessage.Call(uintptr(t.hooks.threadID), wmQuit, 0, 0)
	if ret == 0 {
		log.Printf("Trap: failed to stop hook thread: %v", err)
		return
	}
	<-t.hooks.done
	t.hooks = hookState{}
}

func keyboardProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		switch wParam {
		case wmKeyDown, wmSysKeyDown:
			dispatchKey(uint16(kbd.VkCode), true)
		case wmKeyUp, wmSysKeyUp:
			dispatchKey(uint16(kbd.VkCode), false)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		ms := (*msLLHookStruct)(unsafe.Pointer(lParam))
		x, y := int(ms.Pt.X), int(ms.Pt.Y)
		switch wParam {
		case wmMouseMove:
			dispatchMove(x, y)
		case wmLButtonDown:
			dispatchButton(1, true, x, y)
		case wmLButtonUp:
			dispatchButton(1, false, x, y)
		case wmRButtonDown:
			dispatchButton(2, true, x, y)
		case wmRButtonUp:
			dispatchButton(2, false, x, y)
		case wmMButtonDown:
			dispatchButton(3, true, x, y)
		case wmMButtonUp:
			dispatchButton(3, false, x, y)
		case wmMouseWheel:
			dispatchWheel(int(int16(ms.MouseData>>16)), x, y)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}
