//go:build !windows && !darwin

package hotkey

import "log"

type platformState struct{}

func (m *Manager) startPlatform() error {
	log.Println("Hotkey Engine: Global hooks not supported on this platform.")
	return nil
}

func (m *Manager) stopPlatform() {}
