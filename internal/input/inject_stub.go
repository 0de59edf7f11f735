//go:build !windows && !darwin

package input

// Native is the injector for platforms without an injection backend
type Native struct{}

// NewNative creates the platform injector
func NewNative() *Native {
	return &Native{}
}

func (n *Native) MoveCursor(x, y int) error                { return ErrUnsupported }
func (n *Native) Button(x, y, button int, down bool) error { return ErrUnsupported }
func (n *Native) Key(name string, down bool) error         { return ErrUnsupported }
func (n *Native) Scroll(x, y, step int) error              { return ErrUnsupported }
