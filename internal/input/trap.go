package input

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/nqd1/MacroRecorder/internal/macro"
)

const (
	eventBuffer = 1000
	stopGrace   = 10 * time.Millisecond
)

// ErrTrapActive is returned when another trap already owns the global hooks
var ErrTrapActive = errors.New("input: another trap is active")

// DefaultReserved are the key codes of the default Ctrl+R / Ctrl+P / Ctrl+Q hotkeys
var DefaultReserved = []uint16{VKControl, VKLControl, VKRControl, 'P', 'Q', 'R'}

// The OS callbacks reach the running trap only through this handle.
var (
	trapMu sync.Mutex
	active *Trap
)

// Trap captures global keyboard and mouse input while started. Only one trap
// can be active per process.
type Trap struct {
	reserved map[uint16]bool
	events   chan macro.Event
	start    time.Time

	hooks hookState
}

// NewTrap creates a trap that never forwards the given key codes
func NewTrap(reserved []uint16) *Trap {
	t := &Trap{reserved: make(map[uint16]bool, len(reserved))}
	for _, vk := range reserved {
		t.reserved[vk] = true
	}
	return t
}

// Start installs the hooks. Each start opens a fresh event channel whose
// timestamps count from this call.
func (t *Trap) Start() error {
	if err := t.activate(); err != nil {
		return err
	}
	if err := t.install(); err != nil {
		t.deactivate()
		close(t.events)
		return err
	}
	log.Printf("Trap: hooks installed (%d reserved keys)", len(t.reserved))
	return nil
}

// Stop removes the hooks and closes the event channel. It is a no-op when the
// trap is not running.
func (t *Trap) Stop() error {
	if !t.deactivate() {
		return nil
	}
	t.uninstall()
	time.Sleep(stopGrace)
	close(t.events)
	log.Printf("Trap: hooks removed")
	return nil
}

// Events returns the channel of the current run
func (t *Trap) Events() <-chan macro.Event {
	trapMu.Lock()
	defer trapMu.Unlock()
	return t.events
}

func (t *Trap) activate() error {
	trapMu.Lock()
	defer trapMu.Unlock()
	if active != nil {
		return ErrTrapActive
	}
	t.events = make(chan macro.Event, eventBuffer)
	t.start = time.Now()
	active = t
	return nil
}

func (t *Trap) deactivate() bool {
	trapMu.Lock()
	defer trapMu.Unlock()
	if active != t {
		return false
	}
	active = nil
	return true
}

// deliver must be called with trapMu held
func (t *Trap) deliver(e macro.Event) {
	select {
	case t.events <- e:
	default:
		log.Printf("Trap: event channel full, dropping %s", e.Kind)
	}
}

func (t *Trap) elapsed() float64 {
	return time.Since(t.start).Seconds()
}

func dispatchKey(vk uint16, down bool) {
	trapMu.Lock()
	defer trapMu.Unlock()
	t := active
	if t == nil || t.reserved[vk] {
		return
	}
	t.deliver(macro.NewKey(t.elapsed(), down, KeyName(vk)))
}

func dispatchMove(x, y int) {
	trapMu.Lock()
	defer trapMu.Unlock()
	if t := active; t != nil {
		t.deliver(macro.NewMove(t.elapsed(), x, y))
	}
}

func dispatchButton(button int, down bool, x, y int) {
	trapMu.Lock()
	defer trapMu.Unlock()
	if t := active; t != nil {
		t.deliver(macro.NewButton(t.elapsed(), down, button, x, y))
	}
}

func dispatchWheel(delta, x, y int) {
	trapMu.Lock()
	defer trapMu.Unlock()
	if t := active; t != nil {
		t.deliver(macro.NewScroll(t.elapsed(), delta, x, y))
	}
}
