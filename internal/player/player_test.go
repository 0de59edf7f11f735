package player

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nqd1/MacroRecorder/internal/macro"
)

type injection struct {
	what string
	at   time.Time
}

type fakeInjector struct {
	mu    sync.Mutex
	calls []injection
	fail  map[string]bool
}

func (f *fakeInjector) record(what string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, injection{what: what, at: time.Now()})
	if f.fail[what] {
		return errors.New("injection refused")
	}
	return nil
}

func (f *fakeInjector) MoveCursor(x, y int) error                { return f.record("move") }
func (f *fakeInjector) Button(x, y, button int, down bool) error { return f.record("button") }
func (f *fakeInjector) Key(name string, down bool) error         { return f.record(name) }
func (f *fakeInjector) Scroll(x, y, step int) error              { return f.record("scroll") }

func (f *fakeInjector) snapshot() []injection {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]injection, len(f.calls))
	copy(out, f.calls)
	return out
}

func waitDone(t *testing.T, p *Player, timeout time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(timeout):
		t.Fatalf("playback did not finish within %s", timeout)
	}
}

func TestPlayerReplaysInOrder(t *testing.T) {
	inj := &fakeInjector{}
	p := New(inj)
	p.Load([]macro.Event{
		macro.NewKey(0.02, true, "b"),
		macro.NewKey(0, true, "a"),
		macro.NewMove(0.04, 1, 2),
	})

	finished := make(chan struct{})
	p.OnFinished(func() { close(finished) })

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)
	<-finished

	calls := inj.snapshot()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 injections, got %d", len(calls))
	}
	for i, want := range []string{"a", "b", "move"} {
		if calls[i].what != want {
			t.Errorf("Injection %d: expected %s, got %s", i, want, calls[i].what)
		}
	}
	if p.State() != Idle {
		t.Errorf("Expected idle after finish, got %s", p.State())
	}
	if p.Position() != 3 {
		t.Errorf("Expected position 3, got %d", p.Position())
	}
}

func TestPlayerSpeedScalesTiming(t *testing.T) {
	inj := &fakeInjector{}
	p := New(inj)
	p.Load([]macro.Event{
		macro.NewKey(0, true, "a"),
		macro.NewKey(1.0, false, "a"),
	})
	p.SetSpeed(2.0)

	start := time.Now()
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 3*time.Second)
	elapsed := time.Since(start)

	if elapsed < 450*time.Millisecond || elapsed > 900*time.Millisecond {
		t.Errorf("Expected about 500ms at 2x, took %s", elapsed)
	}
}

func TestPlayerPausePreservesDelay(t *testing.T) {
	inj := &fakeInjector{}
	p := New(inj)
	p.Load([]macro.Event{
		macro.NewKey(0, true, "a"),
		macro.NewKey(0.2, true, "b"),
		macro.NewKey(0.4, true, "c"),
	})

	start := time.Now()
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	p.Pause()
	if p.State() != Paused {
		t.Fatalf("Expected paused, got %s", p.State())
	}
	time.Sleep(500 * time.Millisecond)
	if n := len(inj.snapshot()); n != 1 {
		t.Errorf("Expected no injection while paused, got %d total", n)
	}
	p.Resume()
	waitDone(t, p, 2*time.Second)

	calls := inj.snapshot()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 injections, got %d", len(calls))
	}
	if d := calls[1].at.Sub(start); d < 650*time.Millisecond || d > 900*time.Millisecond {
		t.Errorf("Expected b about 700ms after start (delay plus pause), got %s", d)
	}
	if gap := calls[2].at.Sub(calls[1].at); gap < 150*time.Millisecond || gap > 300*time.Millisecond {
		t.Errorf("Expected about 200ms between b and c, got %s", gap)
	}
}

func TestPlayerStopHaltsInjection(t *testing.T) {
	inj := &fakeInjector{}
	p := New(inj)
	p.Load([]macro.Event{
		macro.NewKey(0, true, "a"),
		macro.NewKey(5, true, "b"),
		macro.NewKey(6, true, "c"),
		macro.NewKey(7, true, "d"),
		macro.NewKey(8, true, "e"),
		macro.NewKey(9, true, "f"),
	})

	progressed := make(chan int, 6)
	p.OnProgress(func(pos, total int) { progressed <- pos })
	finished := make(chan struct{}, 1)
	p.OnFinished(func() { finished <- struct{}{} })

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-progressed:
	case <-time.After(time.Second):
		t.Fatal("first event was not executed")
	}

	p.Stop()
	if p.State() != Idle {
		t.Errorf("Expected idle after stop, got %s", p.State())
	}
	if p.Position() != 1 {
		t.Errorf("Expected position 1 after stop, got %d", p.Position())
	}

	time.Sleep(100 * time.Millisecond)
	if n := len(inj.snapshot()); n != 1 {
		t.Errorf("Expected no injections after stop, got %d total", n)
	}
	select {
	case <-finished:
		t.Error("OnFinished must not run for a stopped playback")
	default:
	}
	select {
	case <-p.Done():
	default:
		t.Error("Expected Done to be closed after Stop")
	}
}

func TestPlayerPauseHoldsNextEvent(t *testing.T) {
	events := make([]macro.Event, 2000)
	for i := range events {
		events[i] = macro.NewKey(0, true, "a")
	}

	for run := 0; run < 20; run++ {
		inj := &fakeInjector{}
		p := New(inj)
		p.Load(events)

		if err := p.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		p.Pause()
		n := len(inj.snapshot())
		time.Sleep(20 * time.Millisecond)
		if got := len(inj.snapshot()); got != n {
			t.Fatalf("Run %d: expected %d injections after Pause returned, got %d", run, n, got)
		}
		if p.Position() != n {
			t.Errorf("Run %d: expected position %d, got %d", run, n, p.Position())
		}
		p.Stop()
	}
}

func TestPlayerFinishedCallbackBelongsToPlayback(t *testing.T) {
	p := New(&fakeInjector{})
	p.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(0.1, true, "b")})

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	p.OnFinished(func() { first <- struct{}{} })
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.OnFinished(func() { second <- struct{}{} })

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the callback registered at Start to run")
	}
	select {
	case <-second:
		t.Error("Callback registered after Start must not run for that playback")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlayerStopWhilePaused(t *testing.T) {
	p := New(&fakeInjector{})
	p.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(5, true, "b")})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	p.Pause()
	p.Stop()

	if p.State() != Idle {
		t.Errorf("Expected idle, got %s", p.State())
	}
	if err := p.Start(); err != nil {
		t.Errorf("Expected restart after stop to succeed, got %v", err)
	}
	p.Stop()
}

func TestPlayerRejectsOverlappingStart(t *testing.T) {
	p := New(&fakeInjector{})
	p.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(5, true, "b")})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("Expected ErrAlreadyPlaying while playing, got %v", err)
	}
	p.Pause()
	if err := p.Start(); !errors.Is(err, ErrAlreadyPlaying) {
		t.Errorf("Expected ErrAlreadyPlaying while paused, got %v", err)
	}
}

func TestPlayerSkipsFailedInjections(t *testing.T) {
	inj := &fakeInjector{fail: map[string]bool{"b": true}}
	p := New(inj)
	p.Load([]macro.Event{
		macro.NewKey(0, true, "a"),
		macro.NewKey(0.01, true, "b"),
		macro.NewKey(0.02, true, "c"),
	})

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	if n := len(inj.snapshot()); n != 3 {
		t.Errorf("Expected all 3 events attempted, got %d", n)
	}
	if p.Position() != 3 {
		t.Errorf("Expected position 3, got %d", p.Position())
	}
}

func TestPlayerStartEmptyTimeline(t *testing.T) {
	p := New(&fakeInjector{})
	if err := p.Start(); err != nil {
		t.Errorf("Expected nil for empty timeline, got %v", err)
	}
	if p.State() != Idle {
		t.Errorf("Expected idle, got %s", p.State())
	}
	p.Stop()
	p.Pause()
	p.Resume()
	if p.State() != Idle {
		t.Errorf("Expected idle after no-op calls, got %s", p.State())
	}
}

func TestPlayerSetSpeed(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.5, 1.5},
		{0.01, MinSpeed},
		{-3, MinSpeed},
		{50, MaxSpeed},
		{math.Inf(1), MaxSpeed},
		{10, 10},
		{0.1, 0.1},
	}

	for _, tt := range tests {
		p := New(&fakeInjector{})
		p.SetSpeed(tt.in)
		if got := p.Speed(); got != tt.want {
			t.Errorf("SetSpeed(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}

	p := New(&fakeInjector{})
	p.SetSpeed(2)
	p.SetSpeed(math.NaN())
	if p.Speed() != 2 {
		t.Errorf("Expected NaN to be ignored, got %v", p.Speed())
	}
}

func TestPlayerLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.mcr")
	content := "# test\n0.500000;KDOWN;char=b\nbogus\n0.100000;KDOWN;char=a\n0.900000;MMOVE;x=1;y=2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	inj := &fakeInjector{}
	p := New(inj)
	n, err := p.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if n != 3 || p.Len() != 3 {
		t.Fatalf("Expected 3 events, got %d (Len %d)", n, p.Len())
	}

	p.SetSpeed(MaxSpeed)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	calls := inj.snapshot()
	for i, want := range []string{"a", "b", "move"} {
		if calls[i].what != want {
			t.Errorf("Injection %d: expected %s, got %s", i, want, calls[i].what)
		}
	}
}

func TestPlayerLoadFromMissingFile(t *testing.T) {
	p := New(&fakeInjector{})
	if _, err := p.LoadFromFile(filepath.Join(t.TempDir(), "missing.mcr")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPlayerLoadStopsLivePlayback(t *testing.T) {
	inj := &fakeInjector{}
	p := New(inj)
	p.Load([]macro.Event{macro.NewKey(0, true, "a"), macro.NewKey(5, true, "b")})
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	p.Load([]macro.Event{macro.NewKey(0, true, "z")})
	if p.State() != Idle || p.Position() != 0 || p.Len() != 1 {
		t.Errorf("Expected fresh idle timeline, got state=%s pos=%d len=%d", p.State(), p.Position(), p.Len())
	}
	if err := p.Start(); err != nil {
		t.Errorf("Expected Start after Load to succeed, got %v", err)
	}
	waitDone(t, p, time.Second)
}
