package controller

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nqd1/MacroRecorder/internal/config"
	"github.com/nqd1/MacroRecorder/internal/journal"
	"github.com/nqd1/MacroRecorder/internal/macro"
	"github.com/nqd1/MacroRecorder/internal/player"
	"github.com/nqd1/MacroRecorder/internal/recorder"
)

type fakeCapture struct {
	mu       sync.Mutex
	events   chan macro.Event
	startErr error
	running  bool
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.events = make(chan macro.Event)
	f.running = true
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		close(f.events)
		f.running = false
	}
	return nil
}

func (f *fakeCapture) Events() <-chan macro.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// send blocks until the pump has taken the event
func (f *fakeCapture) send(e macro.Event) {
	f.mu.Lock()
	ch := f.events
	f.mu.Unlock()
	ch <- e
}

type fakeInjector struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeInjector) MoveCursor(x, y int) error                { return nil }
func (f *fakeInjector) Button(x, y, button int, down bool) error { return nil }
func (f *fakeInjector) Scroll(x, y, step int) error              { return nil }
func (f *fakeInjector) Key(name string, down bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, name)
	return nil
}

func (f *fakeInjector) injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (f *fakeJournal) Append(ctx context.Context, e journal.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type fixture struct {
	ctrl     *Controller
	capture  *fakeCapture
	injector *fakeInjector
	cfg      *config.Manager
	journal  *fakeJournal
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		capture:  &fakeCapture{},
		injector: &fakeInjector{},
		cfg:      config.NewManagerAt(filepath.Join(dir, "config.json")),
		journal:  &fakeJournal{},
		dir:      dir,
	}
	f.cfg.Update(func(c *config.Config) { c.Playback.Speed = player.MaxSpeed })
	f.ctrl = New(Options{
		Capture:  f.capture,
		Recorder: recorder.New(),
		Player:   player.New(f.injector),
		Config:   f.cfg,
		Journal:  f.journal,
	})
	t.Cleanup(f.ctrl.Shutdown)
	return f
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected state %s, still %s", want, c.State())
}

func hasLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestRecordSaveLoadPlay(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	if err := c.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if c.State() != Recording {
		t.Fatalf("Expected recording, got %s", c.State())
	}
	f.capture.send(macro.NewKey(0, true, "h"))
	f.capture.send(macro.NewKey(0.01, false, "h"))
	f.capture.send(macro.NewKey(0.02, true, "i"))

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.Status().EventsRecorded != 3 {
		t.Fatalf("Expected 3 events recorded, got %d", c.Status().EventsRecorded)
	}

	path := filepath.Join(f.dir, "hi.mcr")
	if err := c.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	n, err := c.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 events loaded, got %d", n)
	}
	if f.cfg.Get().Playback.LastFile != path {
		t.Errorf("Expected last file stored in config, got %q", f.cfg.Get().Playback.LastFile)
	}

	if err := c.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	waitState(t, c, Idle)

	if got := strings.Join(f.injector.injected(), ","); got != "h,h,i" {
		t.Errorf("Expected h,h,i injected, got %s", got)
	}
	deadline := time.Now().Add(time.Second)
	for !hasLine(c.Logs(), "Playback finished") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !hasLine(c.Logs(), "Playback finished") {
		t.Errorf("Expected finish to be logged, got %v", c.Logs())
	}
}

func TestHookFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.capture.startErr = errors.New("hooks denied")

	if err := f.ctrl.StartRecording(); err == nil {
		t.Fatal("Expected StartRecording to fail")
	}
	if f.ctrl.State() != Idle {
		t.Errorf("Expected idle after failure, got %s", f.ctrl.State())
	}
	if f.ctrl.rec.State() != recorder.Idle {
		t.Errorf("Expected recorder idle after failure, got %s", f.ctrl.rec.State())
	}
	if !hasLine(f.ctrl.Logs(), "Failed to install hooks: hooks denied") {
		t.Errorf("Expected failure logged, got %v", f.ctrl.Logs())
	}
}

func TestPauseDropsEvents(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	c.StartRecording()
	f.capture.send(macro.NewKey(0, true, "a"))
	if err := c.TogglePause(); err != nil {
		t.Fatalf("TogglePause failed: %v", err)
	}
	if c.State() != RecordingPaused {
		t.Fatalf("Expected recording paused, got %s", c.State())
	}
	f.capture.send(macro.NewKey(0.1, true, "b"))
	// the pump finishes "b" before it can take the next event
	f.capture.send(macro.NewMove(0.2, 1, 1))

	c.TogglePause()
	if c.State() != Recording {
		t.Fatalf("Expected recording after resume, got %s", c.State())
	}
	c.Stop()

	for _, e := range c.rec.Events() {
		if name, _ := e.KeyName(); name == "b" {
			t.Error("Event sent while paused was recorded")
		}
	}
}

func TestBusyTransitions(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	if err := c.TogglePause(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for pause while idle, got %v", err)
	}
	if err := c.Stop(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for stop while idle, got %v", err)
	}

	c.StartRecording()
	if err := c.StartRecording(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for second recording, got %v", err)
	}
	if err := c.StartPlayback(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for playback while recording, got %v", err)
	}
	if _, err := c.Load(filepath.Join(f.dir, "x.mcr")); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for load while recording, got %v", err)
	}
	if err := c.Save(filepath.Join(f.dir, "x.mcr")); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy for save while recording, got %v", err)
	}
}

func TestPlaybackWithoutFile(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.StartPlayback(); !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("Expected ErrNothingLoaded, got %v", err)
	}
}

func TestPlaybackLoadsCurrentFile(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	c.StartRecording()
	f.capture.send(macro.NewKey(0, true, "z"))
	c.Stop()
	if err := c.Save(filepath.Join(f.dir, "z.mcr")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := c.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	waitState(t, c, Idle)
	if got := f.injector.injected(); len(got) != 1 || got[0] != "z" {
		t.Errorf("Expected z injected, got %v", got)
	}
}

func TestStopPlayback(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl
	f.cfg.Update(func(cfg *config.Config) { cfg.Playback.Speed = 1 })

	c.player.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(30, true, "b")})
	c.setCurrentFile(filepath.Join(f.dir, "long.mcr"))

	if err := c.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	if err := c.TogglePause(); err != nil {
		t.Fatalf("TogglePause failed: %v", err)
	}
	if c.State() != PlayingPaused {
		t.Errorf("Expected playing paused, got %s", c.State())
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if c.State() != Idle {
		t.Errorf("Expected idle, got %s", c.State())
	}
	if !hasLine(c.Logs(), "Playback stopped") {
		t.Errorf("Expected stop logged, got %v", c.Logs())
	}
}

func TestLateFinishDoesNotEndNewPlayback(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	c.player.Load([]macro.Event{macro.NewKey(0, true, "a")})
	c.setCurrentFile(filepath.Join(f.dir, "short.mcr"))
	if err := c.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}
	waitState(t, c, Idle)
	c.mu.Lock()
	finished := c.playback
	c.mu.Unlock()

	f.cfg.Update(func(cfg *config.Config) { cfg.Playback.Speed = 1 })
	c.player.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(30, true, "b")})
	if err := c.StartPlayback(); err != nil {
		t.Fatalf("StartPlayback failed: %v", err)
	}

	// the first playback's callback arriving after the second one started
	c.playbackFinished(finished)

	if c.State() != Playing {
		t.Fatalf("Expected playing, got %s", c.State())
	}
	if err := c.TogglePause(); err != nil {
		t.Errorf("Expected pause to reach the live playback, got %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Expected stop to reach the live playback, got %v", err)
	}
	if c.player.State() != player.Idle {
		t.Errorf("Expected player idle after stop, got %s", c.player.State())
	}
}

func TestLogCapAndMouseMoves(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl
	f.cfg.Update(func(cfg *config.Config) { cfg.General.MaxLogLines = 5 })

	c.StartRecording()
	f.capture.send(macro.NewMove(0, 1, 1))
	c.Stop()
	if hasLine(c.Logs(), "Mouse Move") {
		t.Error("Expected mouse moves hidden by default")
	}

	c.SetShowMouseMoves(true)
	c.StartRecording()
	f.capture.send(macro.NewMove(0, 7, 8))
	c.Stop()
	if !hasLine(c.Logs(), "Mouse Move: (7, 8)") {
		t.Errorf("Expected mouse move logged, got %v", c.Logs())
	}

	c.StartRecording()
	for i := 0; i < 10; i++ {
		c.TogglePause()
	}
	c.Stop()
	if n := len(c.Logs()); n != 5 {
		t.Errorf("Expected log capped at 5 lines, got %d", n)
	}
	for _, l := range c.Logs() {
		if len(l) < 15 || l[0] != '[' || l[13] != ']' {
			t.Errorf("Expected [HH:MM:SS.mmm] prefix, got %q", l)
		}
	}
}

func TestJournalReceivesSessionEntries(t *testing.T) {
	f := newFixture(t)
	c := f.ctrl

	c.StartRecording()
	f.capture.send(macro.NewKey(0, true, "q"))
	c.Stop()
	session := c.Status().Session

	f.journal.mu.Lock()
	defer f.journal.mu.Unlock()
	if len(f.journal.entries) == 0 {
		t.Fatal("Expected journal entries")
	}
	found := false
	for _, e := range f.journal.entries {
		if e.Message == "Key Down: q" {
			found = true
			if e.SessionID != session || session == "" {
				t.Errorf("Expected session %q, got %q", session, e.SessionID)
			}
		}
	}
	if !found {
		t.Error("Expected recorded key in journal")
	}
}

func TestSetSpeedPersists(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SetSpeed(0.01)
	if got := f.cfg.Get().Playback.Speed; got != player.MinSpeed {
		t.Errorf("Expected clamped speed %v in config, got %v", player.MinSpeed, got)
	}
	if f.ctrl.Status().Speed != player.MinSpeed {
		t.Errorf("Expected status speed %v, got %v", player.MinSpeed, f.ctrl.Status().Speed)
	}
}
