// Package controller ties input capture, recording, persistence and playback
// into the application state machine driven by the tray, hotkeys and API.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nqd1/MacroRecorder/internal/config"
	"github.com/nqd1/MacroRecorder/internal/input"
	"github.com/nqd1/MacroRecorder/internal/journal"
	"github.com/nqd1/MacroRecorder/internal/macro"
	"github.com/nqd1/MacroRecorder/internal/player"
	"github.com/nqd1/MacroRecorder/internal/recorder"
)

var (
	// ErrBusy is returned when a command is not valid in the current state
	ErrBusy = errors.New("controller: busy")

	// ErrNothingLoaded is returned when playback is requested without a timeline
	ErrNothingLoaded = errors.New("controller: nothing loaded")
)

// State is the application state
type State int

const (
	Idle State = iota
	Recording
	RecordingPaused
	Playing
	PlayingPaused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case RecordingPaused:
		return "recording_paused"
	case Playing:
		return "playing"
	case PlayingPaused:
		return "playing_paused"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type mode int

const (
	modeIdle mode = iota
	modeRecording
	modePlayback
)

// JournalWriter persists activity log lines
type JournalWriter interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Status is a snapshot of the controller for front-ends
type Status struct {
	State          string  `json:"state"`
	EventsRecorded int     `json:"events_recorded"`
	EventsPlayed   int     `json:"events_played"`
	TotalEvents    int     `json:"total_events"`
	RecordingTime  float64 `json:"recording_time"`
	Speed          float64 `json:"speed"`
	File           string  `json:"file,omitempty"`
	Session        string  `json:"session,omitempty"`
}

// Notification is delivered to subscribers on every status change and log line
type Notification struct {
	Status Status
	Line   string // empty for pure status updates
}

// Options configures a Controller
type Options struct {
	Capture  input.Capture
	Recorder *recorder.Recorder
	Player   *player.Player
	Config   *config.Manager
	Journal  JournalWriter // optional
}

// Controller is safe for concurrent use. Commands are serialized; player
// callbacks only touch the state lock.
type Controller struct {
	opMu sync.Mutex

	capture input.Capture
	rec     *recorder.Recorder
	player  *player.Player
	cfg     *config.Manager
	journal JournalWriter

	mu          sync.Mutex
	mode        mode
	currentFile string
	session     string
	playback    int // generation of the latest playback
	lines       []string
	subscribers []func(Notification)
	pumpDone    chan struct{}
}

// New creates an idle controller and hooks it to the player callbacks
func New(opts Options) *Controller {
	c := &Controller{
		capture: opts.Capture,
		rec:     opts.Recorder,
		player:  opts.Player,
		cfg:     opts.Config,
		journal: opts.Journal,
	}
	if c.cfg != nil {
		c.currentFile = c.cfg.Get().Playback.LastFile
	}
	c.player.OnProgress(func(pos, total int) { c.notify("") })
	return c
}

// Subscribe registers fn for notifications. fn must not block.
func (c *Controller) Subscribe(fn func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// State returns the current application state
func (c *Controller) State() State {
	c.mu.Lock()
	m := c.mode
	c.mu.Unlock()

	switch m {
	case modeRecording:
		if c.rec.State() == recorder.Paused {
			return RecordingPaused
		}
		return Recording
	case modePlayback:
		switch c.player.State() {
		case player.Playing:
			return Playing
		case player.Paused:
			return PlayingPaused
		}
	}
	return Idle
}

// Status returns a snapshot for display
func (c *Controller) Status() Status {
	state := c.State()

	c.mu.Lock()
	file, session := c.currentFile, c.session
	c.mu.Unlock()

	return Status{
		State:          state.String(),
		EventsRecorded: c.rec.Len(),
		EventsPlayed:   c.player.Position(),
		TotalEvents:    c.player.Len(),
		RecordingTime:  c.rec.Duration().Seconds(),
		Speed:          c.speed(),
		File:           file,
		Session:        session,
	}
}

// Logs returns a copy of the activity log
func (c *Controller) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// CurrentFile returns the file used by Save, Load and playback
func (c *Controller) CurrentFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentFile
}

// StartRecording clears the previous timeline and installs the input hooks.
// On hook failure everything is rolled back to idle.
func (c *Controller) StartRecording() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != Idle {
		return ErrBusy
	}
	if err := c.rec.Clear(); err != nil {
		return err
	}

	session := uuid.NewString()
	c.mu.Lock()
	c.mode = modeRecording
	c.session = session
	c.mu.Unlock()

	c.rec.Start()
	if err := c.capture.Start(); err != nil {
		c.rec.Stop()
		c.rec.Clear()
		c.mu.Lock()
		c.mode = modeIdle
		c.mu.Unlock()
		c.logf("Failed to install hooks: %v", err)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.pumpDone = done
	c.mu.Unlock()
	go c.pump(c.capture.Events(), done)

	hk := c.hotkeys()
	c.logf("Recording started - Global hooks active")
	c.logf("Hotkeys: %s (pause), %s (stop)", hk.Pause, hk.Stop)
	return nil
}

// pump moves captured events into the recorder until the capture closes
func (c *Controller) pump(events <-chan macro.Event, done chan struct{}) {
	defer close(done)
	for e := range events {
		if !c.rec.AddEvent(e) {
			continue
		}
		if e.IsMouseMove() && !c.showMouseMoves() {
			continue
		}
		c.logf("%s", macro.Describe(e))
	}
}

// TogglePause pauses or resumes the current recording or playback
func (c *Controller) TogglePause() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	switch c.State() {
	case Recording:
		c.rec.Pause()
		c.logf("Recording paused")
	case RecordingPaused:
		c.rec.Resume()
		c.logf("Recording resumed")
	case Playing:
		c.player.Pause()
		c.logf("Playback paused")
	case PlayingPaused:
		c.player.Resume()
		c.logf("Playback resumed")
	default:
		return ErrBusy
	}
	return nil
}

// Stop ends the current recording or playback
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	c.mu.Lock()
	m, done := c.mode, c.pumpDone
	c.mu.Unlock()

	switch m {
	case modeRecording:
		if err := c.capture.Stop(); err != nil {
			log.Printf("Controller: failed to remove hooks: %v", err)
		}
		if done != nil {
			<-done
		}
		c.rec.Stop()
		c.mu.Lock()
		c.mode = modeIdle
		c.pumpDone = nil
		c.mu.Unlock()
		c.logf("Recording stopped - %d events captured", c.rec.Len())
		c.logf("Use Save to store your recording")
	case modePlayback:
		c.player.Stop()
		c.mu.Lock()
		c.mode = modeIdle
		c.mu.Unlock()
		c.logf("Playback stopped")
	default:
		return ErrBusy
	}
	return nil
}

// Save writes the last recording to path, or to the current file when path
// is empty
func (c *Controller) Save(path string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if path == "" {
		path = c.CurrentFile()
	}
	if path == "" {
		return fmt.Errorf("no file selected")
	}
	if m := c.State(); m == Recording || m == RecordingPaused {
		return ErrBusy
	}

	if err := c.rec.SaveToFile(path); err != nil {
		c.logf("Save failed: %v", err)
		return err
	}
	c.setCurrentFile(path)
	c.logf("Saved to: %s", path)
	return nil
}

// Load reads a timeline from path, or from the current file when path is
// empty, and makes it the playback timeline
func (c *Controller) Load(path string) (int, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != Idle {
		return 0, ErrBusy
	}
	if path == "" {
		path = c.CurrentFile()
	}
	if path == "" {
		return 0, fmt.Errorf("no file selected")
	}
	return c.loadLocked(path)
}

func (c *Controller) loadLocked(path string) (int, error) {
	n, err := c.player.LoadFromFile(path)
	if err != nil {
		c.logf("Load failed: %v", err)
		return 0, err
	}
	c.setCurrentFile(path)
	c.logf("Loaded %d events from: %s", n, path)
	return n, nil
}

// StartPlayback plays the loaded timeline at the configured speed. When
// nothing is loaded yet the current file is loaded first.
func (c *Controller) StartPlayback() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State() != Idle {
		return ErrBusy
	}
	if c.player.Len() == 0 {
		file := c.CurrentFile()
		if file == "" {
			return ErrNothingLoaded
		}
		if _, err := c.loadLocked(file); err != nil {
			return err
		}
		if c.player.Len() == 0 {
			return ErrNothingLoaded
		}
	}

	speed := c.speed()
	c.player.SetSpeed(speed)

	c.mu.Lock()
	c.mode = modePlayback
	c.session = uuid.NewString()
	c.playback++
	gen := c.playback
	c.mu.Unlock()

	c.player.OnFinished(func() { c.playbackFinished(gen) })
	if err := c.player.Start(); err != nil {
		c.mu.Lock()
		c.mode = modeIdle
		c.mu.Unlock()
		c.logf("Playback failed: %v", err)
		return err
	}
	c.logf("Playback started (%gx speed)", c.player.Speed())
	return nil
}

// playbackFinished returns to Idle unless a newer playback has started since
// gen was handed out.
func (c *Controller) playbackFinished(gen int) {
	c.mu.Lock()
	if c.mode != modePlayback || gen != c.playback {
		c.mu.Unlock()
		return
	}
	c.mode = modeIdle
	c.mu.Unlock()
	c.logf("Playback finished - %d events played", c.player.Position())
}

// SetSpeed stores the playback speed used by the next playback
func (c *Controller) SetSpeed(speed float64) {
	c.player.SetSpeed(speed)
	if c.cfg != nil {
		applied := c.player.Speed()
		c.cfg.Update(func(cfg *config.Config) { cfg.Playback.Speed = applied })
	}
	c.notify("")
}

// SetShowMouseMoves toggles echoing mouse moves to the activity log
func (c *Controller) SetShowMouseMoves(show bool) {
	if c.cfg != nil {
		c.cfg.Update(func(cfg *config.Config) { cfg.Playback.ShowMouseMoves = show })
	}
}

// Shutdown stops whatever is running and releases the hooks
func (c *Controller) Shutdown() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.stopLocked(); err != nil && !errors.Is(err, ErrBusy) {
		log.Printf("Controller: shutdown: %v", err)
	}
	c.player.Stop()
	c.capture.Stop()
}

func (c *Controller) setCurrentFile(path string) {
	c.mu.Lock()
	c.currentFile = path
	c.mu.Unlock()
	if c.cfg != nil {
		c.cfg.Update(func(cfg *config.Config) { cfg.Playback.LastFile = path })
	}
}

func (c *Controller) speed() float64 {
	if c.cfg != nil {
		return c.cfg.Get().Playback.Speed
	}
	return c.player.Speed()
}

func (c *Controller) showMouseMoves() bool {
	return c.cfg != nil && c.cfg.Get().Playback.ShowMouseMoves
}

func (c *Controller) hotkeys() config.HotkeyConfig {
	if c.cfg != nil {
		return c.cfg.Get().Hotkeys
	}
	return config.DefaultConfig().Hotkeys
}

func (c *Controller) maxLines() int {
	if c.cfg != nil {
		return c.cfg.Get().General.MaxLogLines
	}
	return config.DefaultConfig().General.MaxLogLines
}

// logf appends a timestamped line to the activity log
func (c *Controller) logf(format string, args ...any) {
	now := time.Now()
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s", now.Format("15:04:05.000"), msg)
	limit := c.maxLines()

	c.mu.Lock()
	c.lines = append(c.lines, line)
	if over := len(c.lines) - limit; over > 0 {
		c.lines = append(c.lines[:0:0], c.lines[over:]...)
	}
	session := c.session
	c.mu.Unlock()

	log.Printf("Controller: %s", msg)
	if c.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := c.journal.Append(ctx, journal.Entry{SessionID: session, Message: msg, CreatedAt: now})
		cancel()
		if err != nil {
			log.Printf("Controller: journal append failed: %v", err)
		}
	}
	c.notify(line)
}

func (c *Controller) notify(line string) {
	c.mu.Lock()
	subs := make([]func(Notification), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	n := Notification{Status: c.Status(), Line: line}
	for _, fn := range subs {
		fn(n)
	}
}
