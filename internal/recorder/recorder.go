// Package recorder assembles captured input events into a timeline.
package recorder

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nqd1/MacroRecorder/internal/macro"
)

// ErrNotIdle is returned by operations that require a stopped recorder
var ErrNotIdle = errors.New("recorder: not idle")

// State is the recorder session state
type State int

const (
	Idle State = iota
	Recording
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Recorder collects events between Start and Stop. It is safe for concurrent
// use and can be reused across sessions.
type Recorder struct {
	mu sync.Mutex

	state       State
	events      []macro.Event
	started     time.Time
	pauseStart  time.Time
	pausedTotal time.Duration
	duration    time.Duration

	now func() time.Time
}

// New creates an idle recorder
func New() *Recorder {
	return &Recorder{now: time.Now}
}

// Start begins a new session. It is a no-op unless the recorder is idle.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return
	}
	r.state = Recording
	r.started = r.now()
	r.pausedTotal = 0
	r.duration = 0
	log.Printf("Recorder: started")
}

// AddEvent appends e while recording. Events arriving in any other state are
// dropped and false is returned. The timestamp of an accepted event is moved
// back by the time spent paused so far (never below zero), so a paused
// interval does not replay as dead time.
func (r *Recorder) AddEvent(e macro.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return false
	}
	e.Timestamp -= r.pausedTotal.Seconds()
	if e.Timestamp < 0 {
		e.Timestamp = 0
	}
	r.events = append(r.events, e)
	return true
}

// Pause suspends recording
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return
	}
	r.state = Paused
	r.pauseStart = r.now()
	log.Printf("Recorder: paused after %d events", len(r.events))
}

// Resume continues a paused session
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Paused {
		return
	}
	r.pausedTotal += r.now().Sub(r.pauseStart)
	r.state = Recording
	log.Printf("Recorder: resumed")
}

// Stop ends the session and freezes its duration
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Idle:
		return
	case Paused:
		r.pausedTotal += r.now().Sub(r.pauseStart)
	}
	r.duration = r.elapsedLocked()
	r.state = Idle
	log.Printf("Recorder: stopped with %d events over %s", len(r.events), r.duration.Round(time.Millisecond))
}

// Clear discards the timeline. The recorder must be idle.
func (r *Recorder) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return ErrNotIdle
	}
	r.events = nil
	r.duration = 0
	return nil
}

// Events returns a copy of the timeline
func (r *Recorder) Events() []macro.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]macro.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// State returns the current session state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Duration is the recorded time excluding pauses
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Recording:
		return r.elapsedLocked()
	case Paused:
		return r.pauseStart.Sub(r.started) - r.pausedTotal
	}
	return r.duration
}

func (r *Recorder) elapsedLocked() time.Duration {
	d := r.now().Sub(r.started) - r.pausedTotal
	if d < 0 {
		return 0
	}
	return d
}

// SaveToFile writes the timeline in .mcr format, replacing path atomically
func (r *Recorder) SaveToFile(path string) error {
	events := r.Events()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := macro.WriteTimeline(f, events); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	log.Printf("Recorder: saved %d events to %s", len(events), path)
	return nil
}
