//go:build windows

// Package osutils holds small OS queries used at startup.
package osutils

import "golang.org/x/sys/windows"

// IsElevated reports whether the process runs with an elevated token.
// Low-level hooks of a non-elevated process do not see input sent to
// elevated windows, and injection into them is blocked by UIPI.
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
