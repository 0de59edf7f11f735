//go:build !windows

package osutils

import (
	"os"
	"testing"
)

func TestIsElevatedMatchesEUID(t *testing.T) {
	if got, want := IsElevated(), os.Geteuid() == 0; got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
