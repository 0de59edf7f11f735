//go:build !windows

// Package osutils holds small OS queries used at startup.
package osutils

import "os"

// IsElevated reports whether the process runs as root
func IsElevated() bool {
	return os.Geteuid() == 0
}
