//go:build windows

package input

import (
	"fmt"
	"unsafe"
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseEventLeftDown   = 0x0002
	mouseEventLeftUp     = 0x0004
	mouseEventRightDown  = 0x0008
	mouseEventRightUp    = 0x0010
	mouseEventMiddleDown = 0x0020
	mouseEventMiddleUp   = 0x0040
	mouseEventWheel      = 0x0800

	keyEventExtendedKey = 0x0001
	keyEventKeyUp       = 0x0002

	wheelDelta = 120
)

type mouseInputData struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type keybdInputData struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

// mouseInput and keybdInput mirror INPUT with the matching union member.
// The keyboard variant is padded to the size of the largest member.
type mouseInput struct {
	Type uint32
	Mi   mouseInputData
}

type keybdInput struct {
	Type uint32
	Ki   keybdInputData
	_    [8]byte
}

// Native injects input with SetCursorPos and SendInput
type Native struct{}

// NewNative creates the platform injector
func NewNative() *Native {
	return &Native{}
}

func (n *Native) MoveCursor(x, y int) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos(%d, %d): %v", x, y, err)
	}
	return nil
}

func (n *Native) Button(x, y, button int, down bool) error {
	var flags uint32
	switch button {
	case 1:
		flags = pick(down, mouseEventLeftDown, mouseEventLeftUp)
	case 2:
		flags = pick(down, mouseEventRightDown, mouseEventRightUp)
	case 3:
		flags = pick(down, mouseEventMiddleDown, mouseEventMiddleUp)
	default:
		return fmt.Errorf("invalid button number: %d", button)
	}
	if err := n.MoveCursor(x, y); err != nil {
		return err
	}
	return sendMouse(mouseInputData{DwFlags: flags})
}

func (n *Native) Key(name string, down bool) error {
	vk, ok := KeyCode(name)
	if !ok {
		return fmt.Errorf("unknown key name %q", name)
	}
	var flags uint32
	if !down {
		flags |= keyEventKeyUp
	}
	if IsExtendedKey(vk) {
		flags |= keyEventExtendedKey
	}
	in := keybdInput{Type: inputKeyboard, Ki: keybdInputData{WVk: vk, DwFlags: flags}}
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func (n *Native) Scroll(x, y, step int) error {
	if err := n.MoveCursor(x, y); err != nil {
		return err
	}
	return sendMouse(mouseInputData{
		MouseData: uint32(int32(step * wheelDelta)),
		DwFlags:   mouseEventWheel,
	})
}

func sendMouse(mi mouseInputData) error {
	in := mouseInput{Type: inputMouse, Mi: mi}
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func sendInput(in unsafe.Pointer, size uintptr) error {
	ret, _, err := procSendInput.Call(1, uintptr(in), size)
	if ret != 1 {
		return fmt.Errorf("SendInput: %v", err)
	}
	return nil
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}
