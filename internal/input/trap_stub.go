//go:build !windows

package input

type hookState struct{}

func (t *Trap) install() error {
	return ErrUnsupported
}

func (t *Trap) uninstall() {}
