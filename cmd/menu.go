package main

import (
	"fmt"
	"log"

	"github.com/nqd1/MacroRecorder/internal/autostart"
	"github.com/nqd1/MacroRecorder/internal/config"
	"github.com/nqd1/MacroRecorder/internal/controller"
	"github.com/nqd1/MacroRecorder/internal/tray"
)

// menuState is what the tray shows for one controller state
type menuState struct {
	record, play, pause, stop, files bool
	pauseTitle                       string
}

func menuFor(state string) menuState {
	switch state {
	case controller.Recording.String():
		return menuState{pause: true, stop: true, pauseTitle: "Pause"}
	case controller.RecordingPaused.String():
		return menuState{pause: true, stop: true, pauseTitle: "Resume"}
	case controller.Playing.String():
		return menuState{pause: true, stop: true, pauseTitle: "Pause"}
	case controller.PlayingPaused.String():
		return menuState{pause: true, stop: true, pauseTitle: "Resume"}
	}
	return menuState{record: true, play: true, files: true, pauseTitle: "Pause"}
}

type menu struct {
	t                                     *tray.Tray
	record, play, pause, stop, save, load int
	mouseMoves, login                     int
}

func buildMenu(t *tray.Tray, cfgMgr *config.Manager, ctrl *controller.Controller) *menu {
	report := func(action string, err error) {
		if err != nil {
			log.Printf("Tray: %s: %v", action, err)
		}
	}

	m := &menu{t: t}
	m.record = t.AddMenuItem("Record", func() { report("record", ctrl.StartRecording()) })
	m.play = t.AddMenuItem("Play", func() { report("play", ctrl.StartPlayback()) })
	m.pause = t.AddMenuItem("Pause", func() { report("pause", ctrl.TogglePause()) })
	m.stop = t.AddMenuItem("Stop", func() { report("stop", ctrl.Stop()) })
	t.AddSeparator()
	m.save = t.AddMenuItem("Save", func() {
		report("save", ctrl.Save(recordingPath(cfgMgr, ctrl)))
	})
	m.load = t.AddMenuItem("Load", func() {
		_, err := ctrl.Load(recordingPath(cfgMgr, ctrl))
		report("load", err)
	})
	t.AddSeparator()
	m.mouseMoves = t.AddMenuItem(onOff("Show Mouse Moves", cfgMgr.Get().Playback.ShowMouseMoves), func() {
		show := !cfgMgr.Get().Playback.ShowMouseMoves
		ctrl.SetShowMouseMoves(show)
		t.SetItemTitle(m.mouseMoves, onOff("Show Mouse Moves", show))
	})
	m.login = t.AddMenuItem(onOff("Start at Login", autostart.IsEnabled()), func() {
		on, err := autostart.Toggle()
		if err != nil {
			report("start at login", err)
			return
		}
		t.SetItemTitle(m.login, onOff("Start at Login", on))
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	m.apply(ctrl.Status())
	return m
}

func (m *menu) apply(st controller.Status) {
	s := menuFor(st.State)
	m.t.SetItemEnabled(m.record, s.record)
	m.t.SetItemEnabled(m.play, s.play)
	m.t.SetItemEnabled(m.pause, s.pause)
	m.t.SetItemEnabled(m.stop, s.stop)
	m.t.SetItemEnabled(m.save, s.files)
	m.t.SetItemEnabled(m.load, s.files)
	m.t.SetItemTitle(m.pause, s.pauseTitle)
	m.t.SetTooltip(tooltip(st))
}

func tooltip(st controller.Status) string {
	switch st.State {
	case controller.Recording.String(), controller.RecordingPaused.String():
		return fmt.Sprintf("MacroRecorder - %s (%d events, %.1fs)", st.State, st.EventsRecorded, st.RecordingTime)
	case controller.Playing.String(), controller.PlayingPaused.String():
		return fmt.Sprintf("MacroRecorder - %s (%d/%d)", st.State, st.EventsPlayed, st.TotalEvents)
	}
	return "MacroRecorder - " + st.State
}

func onOff(label string, on bool) string {
	if on {
		return label + ": on"
	}
	return label + ": off"
}
