// Package player replays a recorded timeline through an input injector with
// the recorded timing scaled by a speed factor.
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/nqd1/MacroRecorder/internal/input"
	"github.com/nqd1/MacroRecorder/internal/macro"
)

// Speed limits
const (
	MinSpeed     = 0.1
	MaxSpeed     = 10.0
	DefaultSpeed = 1.0
)

// tick bounds how long the loop sleeps before re-checking its state
const tick = 25 * time.Millisecond

// ErrAlreadyPlaying is returned by Start while a playback loop is live
var ErrAlreadyPlaying = errors.New("player: already playing")

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// State is the player session state
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Player owns a timeline and at most one playback loop. All control state is
// guarded by mu; the loop is woken through signal, which is closed and
// replaced on every transition.
type Player struct {
	mu sync.Mutex

	injector input.Injector
	events   []macro.Event
	speed    float64
	state    State
	pos      int

	started     time.Time
	pauseStart  time.Time
	pausedTotal time.Duration

	signal  chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	onProgress func(pos, total int)
	onFinished func()
}

// New creates an idle player that injects through inj
func New(inj input.Injector) *Player {
	return &Player{
		injector: inj,
		speed:    DefaultSpeed,
		signal:   make(chan struct{}),
		done:     closedChan,
	}
}

// LoadFromFile replaces the timeline with the events decoded from path.
// Undecodable lines are skipped. It returns the number of events loaded.
func (p *Player) LoadFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open timeline: %w", err)
	}
	defer f.Close()

	events, err := macro.ReadTimeline(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read timeline: %w", err)
	}
	p.Load(events)
	log.Printf("Player: loaded %d events from %s", len(events), path)
	return len(events), nil
}

// Load replaces the timeline, stopping any live playback first
func (p *Player) Load(events []macro.Event) {
	p.Stop()

	sorted := make([]macro.Event, len(events))
	copy(sorted, events)
	macro.SortTimeline(sorted)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = sorted
	p.pos = 0
	p.state = Idle
}

// SetSpeed sets the playback rate for the next Start, clamped to
// [MinSpeed, MaxSpeed]. NaN is ignored.
func (p *Player) SetSpeed(speed float64) {
	if math.IsNaN(speed) {
		return
	}
	speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = speed
}

// Speed returns the configured playback rate
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// OnProgress registers a callback run after each executed event. Callbacks
// run on the playback goroutine and must not call Stop.
func (p *Player) OnProgress(fn func(pos, total int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onProgress = fn
}

// OnFinished registers a callback run when a playback reaches the end of the
// timeline. It is not run for stopped playbacks. Each playback keeps the
// callback registered when it was started.
func (p *Player) OnFinished(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFinished = fn
}

// Start plays the timeline from the beginning. It does nothing for an empty
// timeline and fails with ErrAlreadyPlaying while a loop is live.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyPlaying
	}
	if len(p.events) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.state = Playing
	p.pos = 0
	p.started = time.Now()
	p.pausedTotal = 0
	p.cancel = cancel
	p.done = done
	p.running = true
	p.signalLocked()

	log.Printf("Player: playing %d events at %.2fx", len(p.events), p.speed)
	go p.run(ctx, p.events, p.speed, p.onFinished, done)
	return nil
}

// Pause suspends a playing loop
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Playing {
		return
	}
	p.state = Paused
	p.pauseStart = time.Now()
	p.signalLocked()
	log.Printf("Player: paused at %d/%d", p.pos, len(p.events))
}

// Resume continues a paused loop
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Paused {
		return
	}
	p.pausedTotal += time.Since(p.pauseStart)
	p.state = Playing
	p.signalLocked()
	log.Printf("Player: resumed")
}

// Stop ends playback and waits for the loop to exit. Position keeps the index
// of the next event that was not executed.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state == Idle {
		p.mu.Unlock()
		return
	}
	p.state = Idle
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.signalLocked()
	done := p.done
	p.mu.Unlock()

	<-done
	log.Printf("Player: stopped at %d/%d", p.Position(), p.Len())
}

// Done is closed when the current playback loop exits
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// State returns the current session state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the index of the next event to execute
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Len returns the number of loaded events
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *Player) signalLocked() {
	close(p.signal)
	p.signal = make(chan struct{})
}

// elapsedLocked is the playback time since Start, excluding pauses
func (p *Player) elapsedLocked() time.Duration {
	paused := p.pausedTotal
	if p.state == Paused {
		paused += time.Since(p.pauseStart)
	}
	return time.Since(p.started) - paused
}

func (p *Player) run(ctx context.Context, events []macro.Event, speed float64, fin func(), done chan struct{}) {
	finished := p.play(ctx, events, speed)

	p.mu.Lock()
	if finished {
		p.state = Idle
		p.cancel = nil
		p.signalLocked()
	}
	p.running = false
	p.mu.Unlock()

	close(done)
	if finished {
		log.Printf("Player: finished %d events", len(events))
		if fin != nil {
			fin()
		}
	}
}

func (p *Player) play(ctx context.Context, events []macro.Event, speed float64) bool {
	total := len(events)
	for i, e := range events {
		target := time.Duration(e.Timestamp / speed * float64(time.Second))
		if !p.acquire(ctx, target) {
			return false
		}

		// mu is held: Pause and Stop cannot interleave with the event
		if cmd, ok := input.CommandFor(e); ok {
			if err := cmd.Apply(p.injector); err != nil {
				log.Printf("Player: event %d (%s) failed: %v", i, cmd, err)
			}
		} else {
			log.Printf("Player: event %d (%s) has nothing to replay", i, macro.Describe(e))
		}

		p.pos = i + 1
		progress := p.onProgress
		p.mu.Unlock()

		if progress != nil {
			progress(i+1, total)
		}
	}
	return ctx.Err() == nil
}

// acquire waits for target and returns with mu held while the loop is still
// playing. It returns false, without the lock, when the loop was cancelled.
func (p *Player) acquire(ctx context.Context, target time.Duration) bool {
	for {
		if !p.waitUntil(ctx, target) {
			return false
		}
		p.mu.Lock()
		if ctx.Err() != nil {
			p.mu.Unlock()
			return false
		}
		if p.state == Playing {
			return true
		}
		p.mu.Unlock()
	}
}

// waitUntil blocks until the playback clock reaches target. It returns false
// when the loop was cancelled.
func (p *Player) waitUntil(ctx context.Context, target time.Duration) bool {
	for {
		p.mu.Lock()
		if ctx.Err() != nil {
			p.mu.Unlock()
			return false
		}
		sig := p.signal
		paused := p.state == Paused
		remaining := target - p.elapsedLocked()
		p.mu.Unlock()

		if paused {
			select {
			case <-sig:
			case <-ctx.Done():
				return false
			}
			continue
		}
		if remaining <= 0 {
			return true
		}

		timer := time.NewTimer(min(remaining, tick))
		select {
		case <-timer.C:
		case <-sig:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
}
