package input

import (
	"strconv"
	"strings"
)

// Windows virtual-key codes used by the key table and the hotkey engine
const (
	VKBack     uint16 = 0x08
	VKTab      uint16 = 0x09
	VKReturn   uint16 = 0x0D
	VKShift    uint16 = 0x10
	VKControl  uint16 = 0x11
	VKMenu     uint16 = 0x12
	VKEscape   uint16 = 0x1B
	VKSpace    uint16 = 0x20
	VKPrior    uint16 = 0x21
	VKNext     uint16 = 0x22
	VKEnd      uint16 = 0x23
	VKHome     uint16 = 0x24
	VKLeft     uint16 = 0x25
	VKUp       uint16 = 0x26
	VKRight    uint16 = 0x27
	VKDown     uint16 = 0x28
	VKInsert   uint16 = 0x2D
	VKDelete   uint16 = 0x2E
	VKLShift   uint16 = 0xA0
	VKRShift   uint16 = 0xA1
	VKLControl uint16 = 0xA2
	VKRControl uint16 = 0xA3
	VKLMenu    uint16 = 0xA4
	VKRMenu    uint16 = 0xA5
)

var namedKeys = map[uint16]string{
	VKSpace:   "space",
	VKReturn:  "enter",
	VKBack:    "backspace",
	VKTab:     "tab",
	VKShift:   "shift",
	VKControl: "ctrl",
	VKMenu:    "alt",
	VKEscape:  "esc",
	VKLeft:    "left",
	VKUp:      "up",
	VKRight:   "right",
	VKDown:    "down",
	VKDelete:  "delete",
	VKInsert:  "insert",
	VKHome:    "home",
	VKEnd:     "end",
	VKPrior:   "page_up",
	VKNext:    "page_down",
	0xBA:      ";",
	0xBB:      "=",
	0xBC:      ",",
	0xBD:      "-",
	0xBE:      ".",
	0xBF:      "/",
	0xC0:      "`",
	0xDB:      "[",
	0xDC:      "\\",
	0xDD:      "]",
	0xDE:      "'",
}

var namedCodes = func() map[string]uint16 {
	m := make(map[string]uint16, len(namedKeys))
	for vk, name := range namedKeys {
		m[name] = vk
	}
	return m
}()

// KeyName returns the canonical name of a virtual-key code. Codes outside the
// table are named vk_<decimal>.
func KeyName(vk uint16) string {
	switch {
	case vk >= 'A' && vk <= 'Z':
		return string(rune(vk - 'A' + 'a'))
	case vk >= '0' && vk <= '9':
		return string(rune(vk))
	case vk >= 0x70 && vk <= 0x7B:
		return "f" + strconv.Itoa(int(vk-0x6F))
	}
	if name, ok := namedKeys[vk]; ok {
		return name
	}
	return "vk_" + strconv.Itoa(int(vk))
}

// KeyCode is the inverse of KeyName
func KeyCode(name string) (uint16, bool) {
	if vk, ok := namedCodes[name]; ok {
		return vk, true
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uint16(c-'a') + 'A', true
		case c >= '0' && c <= '9':
			return uint16(c), true
		}
	}
	if rest, ok := strings.CutPrefix(name, "f"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 12 && rest[0] != '0' {
			return 0x6F + uint16(n), true
		}
	}
	if rest, ok := strings.CutPrefix(name, "vk_"); ok {
		if n, err := strconv.ParseUint(rest, 10, 16); err == nil {
			return uint16(n), true
		}
	}
	return 0, false
}

// IsExtendedKey reports whether injecting vk needs the extended-key flag
func IsExtendedKey(vk uint16) bool {
	switch vk {
	case VKPrior, VKNext, VKEnd, VKHome, VKLeft, VKUp, VKRight, VKDown,
		VKInsert, VKDelete, VKRControl, VKRMenu:
		return true
	}
	return false
}
