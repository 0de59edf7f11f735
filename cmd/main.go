// MacroRecorder - records keyboard and mouse input and replays it
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nqd1/MacroRecorder/internal/api"
	"github.com/nqd1/MacroRecorder/internal/config"
	"github.com/nqd1/MacroRecorder/internal/controller"
	"github.com/nqd1/MacroRecorder/internal/hotkey"
	"github.com/nqd1/MacroRecorder/internal/input"
	"github.com/nqd1/MacroRecorder/internal/journal"
	"github.com/nqd1/MacroRecorder/internal/network"
	"github.com/nqd1/MacroRecorder/internal/osutils"
	"github.com/nqd1/MacroRecorder/internal/player"
	"github.com/nqd1/MacroRecorder/internal/protocol"
	"github.com/nqd1/MacroRecorder/internal/recorder"
	"github.com/nqd1/MacroRecorder/internal/tray"
)

const defaultRecording = "recording.mcr"

var (
	version    = "0.1.0"
	showVer    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Use this config file instead of the per-user one")
	playFile   = flag.String("play", "", "Play a .mcr file once and exit")
	speed      = flag.Float64("speed", 0, "Playback speed for -play (0.1 - 10, default from config)")
	watchAddr  = flag.String("watch", "", "Follow a running instance at host:port")
	send       = flag.String("send", "", "With -watch: send one command (record, pause, stop, play, save, load)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("macrorecorder version %s\n", version)
		return
	}

	cfgMgr, err := newConfigManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	switch {
	case *watchAddr != "":
		runWatch(cfgMgr, *watchAddr, *send)
	case *playFile != "":
		runPlay(cfgMgr, *playFile)
	default:
		runService(cfgMgr)
	}
}

func newConfigManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerAt(*configPath), nil
	}
	return config.NewManager()
}

// runPlay replays one file without the tray. Ctrl+C stops playback.
func runPlay(cfgMgr *config.Manager, path string) {
	p := player.New(input.NewNative())
	n, err := p.LoadFromFile(path)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", path, err)
	}
	if n == 0 {
		log.Fatalf("No events in %s", path)
	}

	rate := *speed
	if rate == 0 {
		rate = cfgMgr.Get().Playback.Speed
	}
	p.SetSpeed(rate)
	p.OnProgress(func(pos, total int) {
		if pos == total || pos%100 == 0 {
			log.Printf("Playback: %d/%d", pos, total)
		}
	})

	if err := p.Start(); err != nil {
		log.Fatalf("Failed to start playback: %v", err)
	}
	log.Printf("Playing %d events from %s at %gx", n, path, p.Speed())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-p.Done():
		log.Printf("Playback finished - %d events played", p.Position())
	case <-sigCh:
		p.Stop()
		log.Printf("Playback stopped at %d/%d", p.Position(), p.Len())
	}
}

// runWatch streams status and log lines from a running instance
func runWatch(cfgMgr *config.Manager, addr, action string) {
	cfg := cfgMgr.Get()
	client := network.NewWSClient(addr, cfg.General.APIToken)

	synced := make(chan struct{}, 1)
	client.OnSync = func(s protocol.SyncResponsePayload) {
		for _, line := range s.Logs {
			fmt.Println(line)
		}
		fmt.Printf("-- %s, %d recorded, %d/%d played, %gx\n",
			s.Status.State, s.Status.EventsRecorded, s.Status.EventsPlayed, s.Status.TotalEvents, s.Status.Speed)
		select {
		case synced <- struct{}{}:
		default:
		}
	}
	client.OnLog = func(line string) {
		fmt.Println(line)
	}
	client.OnError = func(action, message string) {
		fmt.Printf("!! %s: %s\n", action, message)
	}
	client.Start()
	defer client.Close()

	if action != "" {
		select {
		case <-synced:
			client.SendCommand(protocol.CommandPayload{Action: action})
		case <-time.After(10 * time.Second):
			log.Fatalf("Could not reach %s", addr)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

func runService(cfgMgr *config.Manager) {
	log.Println("MacroRecorder starting...")
	cfg := cfgMgr.Get()

	if runtime.GOOS == "windows" && !osutils.IsElevated() {
		log.Println("Note: input sent to elevated windows is neither captured nor replayed")
		log.Println("Run MacroRecorder as Administrator to record those windows")
	}

	var jw controller.JournalWriter
	if path := cfgMgr.JournalFile(); path != "" {
		j, err := journal.Open(context.Background(), path, cfg.General.MaxLogLines)
		if err != nil {
			log.Printf("Warning: activity journal disabled: %v", err)
		} else {
			defer j.Close()
			jw = j
			log.Printf("Activity journal: %s", path)
		}
	}

	reserved := cfg.Hotkeys.ReservedKeys
	if len(reserved) == 0 {
		reserved = hotkey.ReservedKeys(cfg.Hotkeys.Record, cfg.Hotkeys.Pause, cfg.Hotkeys.Stop)
	}

	ctrl := controller.New(controller.Options{
		Capture:  input.NewTrap(reserved),
		Recorder: recorder.New(),
		Player:   player.New(input.NewNative()),
		Config:   cfgMgr,
		Journal:  jw,
	})

	cfgMgr.RegisterChangeCallback(func() {
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
	})

	var apiServer *api.Server
	if cfg.General.APIEnabled {
		apiServer = api.NewServer(cfgMgr, ctrl)
		go func() {
			if err := apiServer.Start(cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	hkMgr := hotkey.NewManager()
	registerHotkeys(hkMgr, cfg.Hotkeys, ctrl)
	if err := hkMgr.Start(); err != nil {
		log.Printf("Warning: Hotkey Engine failed to start: %v", err)
	}

	t := tray.New("MacroRecorder - idle")
	m := buildMenu(t, cfgMgr, ctrl)
	ctrl.Subscribe(func(n controller.Notification) {
		m.apply(n.Status)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Printf("MacroRecorder running. %s record, %s pause, %s stop.",
		cfg.Hotkeys.Record, cfg.Hotkeys.Pause, cfg.Hotkeys.Stop)
	t.Run()

	ctrl.Shutdown()
	hkMgr.Stop()
	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("API shutdown: %v", err)
		}
		cancel()
	}
}

func registerHotkeys(hkMgr *hotkey.Manager, hk config.HotkeyConfig, ctrl *controller.Controller) {
	bindings := []struct {
		combo string
		name  string
		fn    func() error
	}{
		{hk.Record, "record", ctrl.StartRecording},
		{hk.Pause, "pause", ctrl.TogglePause},
		{hk.Stop, "stop", ctrl.Stop},
	}
	for _, b := range bindings {
		if b.combo == "" {
			continue
		}
		b := b
		if _, err := hkMgr.Register(b.combo, func() {
			if err := b.fn(); err != nil {
				log.Printf("Hotkey: %s ignored: %v", b.name, err)
			}
		}); err != nil {
			log.Printf("Warning: failed to register %s hotkey %q: %v", b.name, b.combo, err)
		}
	}
}

// recordingPath returns the file used by the tray Save and Load items
func recordingPath(cfgMgr *config.Manager, ctrl *controller.Controller) string {
	if f := ctrl.CurrentFile(); f != "" {
		return f
	}
	return filepath.Join(cfgMgr.Dir(), defaultRecording)
}
