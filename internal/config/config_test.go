package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Playback.Speed != 1.0 {
		t.Errorf("Expected speed 1.0, got %v", cfg.Playback.Speed)
	}
	if cfg.Playback.ShowMouseMoves {
		t.Error("Expected mouse moves hidden by default")
	}
	if cfg.Hotkeys.Record != "Ctrl+R" || cfg.Hotkeys.Pause != "Ctrl+P" || cfg.Hotkeys.Stop != "Ctrl+Q" {
		t.Errorf("Unexpected default hotkeys: %+v", cfg.Hotkeys)
	}
	if cfg.General.MaxLogLines != 1000 {
		t.Errorf("Expected 1000 log lines, got %d", cfg.General.MaxLogLines)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Get().General.APIPort != 18090 {
		t.Errorf("Expected default port, got %d", m.Get().General.APIPort)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManagerAt(path)
	m.Update(func(c *Config) {
		c.Playback.Speed = 2.5
		c.Playback.LastFile = "/tmp/demo.mcr"
		c.Hotkeys.Record = "Ctrl+Alt+R"
	})
	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewManagerAt(path)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := loaded.Get()
	if cfg.Playback.Speed != 2.5 {
		t.Errorf("Expected speed 2.5, got %v", cfg.Playback.Speed)
	}
	if cfg.Playback.LastFile != "/tmp/demo.mcr" {
		t.Errorf("Expected last file to persist, got %q", cfg.Playback.LastFile)
	}
	if cfg.Hotkeys.Record != "Ctrl+Alt+R" {
		t.Errorf("Expected record hotkey to persist, got %q", cfg.Hotkeys.Record)
	}
	// fields absent from the file keep defaults
	if cfg.Hotkeys.Stop != "Ctrl+Q" {
		t.Errorf("Expected default stop hotkey, got %q", cfg.Hotkeys.Stop)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"playback":{"speed":3}}`), 0644); err != nil {
		t.Fatal(err)
	}
	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Playback.Speed != 3 {
		t.Errorf("Expected speed 3, got %v", cfg.Playback.Speed)
	}
	if cfg.General.MaxLogLines != 1000 || cfg.Hotkeys.Pause != "Ctrl+P" {
		t.Errorf("Expected defaults for missing fields, got %+v", cfg)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewManagerAt(path).Load(); err == nil {
		t.Error("Expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MACROREC_SPEED", "4.5")
	t.Setenv("MACROREC_API_PORT", "19000")
	t.Setenv("MACROREC_API_TOKEN", "secret")
	t.Setenv("MACROREC_JOURNAL", "/tmp/journal.db")

	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg := m.Get()
	if cfg.Playback.Speed != 4.5 {
		t.Errorf("Expected speed 4.5, got %v", cfg.Playback.Speed)
	}
	if cfg.General.APIPort != 19000 {
		t.Errorf("Expected port 19000, got %d", cfg.General.APIPort)
	}
	if cfg.General.APIToken != "secret" {
		t.Errorf("Expected token override, got %q", cfg.General.APIToken)
	}
	if cfg.General.JournalPath != "/tmp/journal.db" {
		t.Errorf("Expected journal override, got %q", cfg.General.JournalPath)
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("MACROREC_SPEED", "fast")
	if err := NewManagerAt(filepath.Join(t.TempDir(), "config.json")).Load(); err == nil {
		t.Error("Expected error for unparsable speed")
	}
}

func TestNormalizeFixesInvalidValues(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	cfg := DefaultConfig()
	cfg.Playback.Speed = -1
	cfg.General.MaxLogLines = 0
	cfg.General.APIPort = 70000
	m.Set(cfg)

	got := m.Get()
	if got.Playback.Speed != 1.0 || got.General.MaxLogLines != 1000 || got.General.APIPort != 18090 {
		t.Errorf("Expected invalid values replaced by defaults, got %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	m.Update(func(c *Config) { c.Hotkeys.ReservedKeys = []uint16{0x11} })

	cfg := m.Get()
	cfg.Playback.Speed = 9
	cfg.Hotkeys.ReservedKeys[0] = 0x42

	again := m.Get()
	if again.Playback.Speed != 1.0 || again.Hotkeys.ReservedKeys[0] != 0x11 {
		t.Errorf("Expected manager state untouched, got %+v", again)
	}
}

func TestChangeCallback(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	calls := 0
	m.RegisterChangeCallback(func() { calls++ })

	m.Set(DefaultConfig())
	m.Update(func(c *Config) { c.Playback.ShowMouseMoves = true })
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 change callbacks, got %d", calls)
	}
}

func TestJournalFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManagerAt(filepath.Join(dir, "config.json"))

	tests := []struct {
		setting string
		want    string
	}{
		{"", filepath.Join(dir, "journal.db")},
		{"off", ""},
		{"/var/tmp/j.db", "/var/tmp/j.db"},
	}
	for _, tt := range tests {
		m.Update(func(c *Config) { c.General.JournalPath = tt.setting })
		if got := m.JournalFile(); got != tt.want {
			t.Errorf("JournalPath %q: expected %q, got %q", tt.setting, tt.want, got)
		}
	}
}
