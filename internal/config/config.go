// Package config provides configuration management for the macro recorder.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/caarlos0/env/v11"
)

const appDirName = "macrorecorder"

// Config represents the application configuration
type Config struct {
	// Playback contains player settings
	Playback PlaybackConfig `json:"playback"`

	// Hotkeys contains the global hotkey bindings
	Hotkeys HotkeyConfig `json:"hotkeys"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// PlaybackConfig contains player settings
type PlaybackConfig struct {
	// Speed is the playback rate multiplier (0.1 - 10.0)
	Speed float64 `json:"speed"`

	// ShowMouseMoves echoes mouse move events to the activity log
	ShowMouseMoves bool `json:"show_mouse_moves"`

	// LastFile is the .mcr file used by Save and Load
	LastFile string `json:"last_file,omitempty"`
}

// HotkeyConfig contains the global hotkey bindings
type HotkeyConfig struct {
	Record string `json:"record"`
	Pause  string `json:"pause"`
	Stop   string `json:"stop"`

	// ReservedKeys overrides the key codes kept out of recordings.
	// When empty they are derived from the bindings above.
	ReservedKeys []uint16 `json:"reserved_keys,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIEnabled enables the local HTTP control API
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server (default: 18090)
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`

	// JournalPath is the SQLite activity journal. Empty means journal.db
	// next to the config file; "off" disables it.
	JournalPath string `json:"journal_path,omitempty"`

	// MaxLogLines caps the in-memory activity log and the journal
	MaxLogLines int `json:"max_log_lines"`
}

// envOverrides are applied on top of the file. Unset variables leave the
// file values untouched.
type envOverrides struct {
	Speed    *float64 `env:"MACROREC_SPEED"`
	APIPort  *int     `env:"MACROREC_API_PORT"`
	APIToken *string  `env:"MACROREC_API_TOKEN"`
	Journal  *string  `env:"MACROREC_JOURNAL"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			Speed:          1.0,
			ShowMouseMoves: false,
		},
		Hotkeys: HotkeyConfig{
			Record: "Ctrl+R",
			Pause:  "Ctrl+P",
			Stop:   "Ctrl+Q",
		},
		General: GeneralConfig{
			APIEnabled:  true,
			APIPort:     18090,
			MaxLogLines: 1000,
		},
	}
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	out := *c
	out.Hotkeys.ReservedKeys = append([]uint16(nil), c.Hotkeys.ReservedKeys...)
	return &out
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager for the per-user config file
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager for an explicit file
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appDirName)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, appDirName)
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", appDirName)
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// Dir returns the directory holding the configuration file
func (m *Manager) Dir() string {
	return filepath.Dir(m.configPath)
}

// Load reads the configuration from disk and applies environment overrides
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if err != nil && !os.IsNotExist(err) {
		m.mu.Unlock()
		return fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		cfg := DefaultConfig()
		if err := json.Unmarshal(data, cfg); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("parse config %s: %w", m.configPath, err)
		}
		m.config = cfg
	}

	if err := applyEnv(m.config); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config.normalize()
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.Speed != nil {
		cfg.Playback.Speed = *o.Speed
	}
	if o.APIPort != nil {
		cfg.General.APIPort = *o.APIPort
	}
	if o.APIToken != nil {
		cfg.General.APIToken = *o.APIToken
	}
	if o.Journal != nil {
		cfg.General.JournalPath = *o.Journal
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Playback.Speed <= 0 {
		c.Playback.Speed = def.Playback.Speed
	}
	if c.General.MaxLogLines <= 0 {
		c.General.MaxLogLines = def.General.MaxLogLines
	}
	if c.General.APIPort <= 0 || c.General.APIPort > 65535 {
		c.General.APIPort = def.General.APIPort
	}
}

// JournalFile resolves the journal location. It returns "" when the journal
// is disabled.
func (m *Manager) JournalFile() string {
	p := m.Get().General.JournalPath
	switch p {
	case "off":
		return ""
	case "":
		return filepath.Join(m.Dir(), "journal.db")
	}
	return p
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Clone()
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config.Clone()
	m.config.normalize()
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Update applies fn to the configuration under the lock
func (m *Manager) Update(fn func(*Config)) {
	m.mu.Lock()
	fn(m.config)
	m.config.normalize()
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
