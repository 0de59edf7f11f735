// Package hotkey provides global system-wide hotkey monitoring.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // map of current keys pressed

	platform platformState
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "R"]
	original string
	callback func()
	fired    bool
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// ParseCombo splits a combo like "Ctrl+R" into upper-case key names and
// checks that every part is a known key.
func ParseCombo(combo string) ([]string, error) {
	if strings.TrimSpace(combo) == "" {
		return nil, fmt.Errorf("empty hotkey")
	}
	parts := strings.Split(strings.ToUpper(combo), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if _, ok := nameCodes[p]; !ok {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", p, combo)
		}
		parts[i] = p
	}
	return parts, nil
}

// ReservedKeys returns the virtual-key codes of every key used by the combos.
// Invalid combos are skipped.
func ReservedKeys(combos ...string) []uint16 {
	seen := make(map[uint16]bool)
	var codes []uint16
	for _, combo := range combos {
		parts, err := ParseCombo(combo)
		if err != nil {
			continue
		}
		for _, p := range parts {
			for _, vk := range nameCodes[p] {
				if !seen[vk] {
					seen[vk] = true
					codes = append(codes, vk)
				}
			}
		}
	}
	return codes
}

// Register registers a hotkey string (e.g. "Ctrl+R") and a callback.
func (m *Manager) Register(hotkeyStr string, callback func()) (int, error) {
	parts, err := ParseCombo(hotkeyStr)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})

	return len(m.hotkeys) - 1, nil
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState updates the internal state of a key and checks for matches.
// A held combo fires once until one of its keys is released.
func (m *Manager) UpdateState(key string, isDown bool) {
	key = strings.ToUpper(key)

	m.mu.Lock()
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}

	var triggered []*registeredHotkey
	for _, hk := range m.hotkeys {
		match := true
		// All parts of the hotkey must be in currentState
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}
		if match && !hk.fired {
			triggered = append(triggered, hk)
		}
		hk.fired = match
	}
	m.mu.Unlock()

	for _, hk := range triggered {
		log.Printf("Hotkey triggered: %s", hk.original)
		go hk.callback()
	}
}

// Start initiates the platform-specific global hooks.
func (m *Manager) Start() error {
	return m.startPlatform()
}

// Stop removes the platform hooks
func (m *Manager) Stop() {
	m.stopPlatform()
}
