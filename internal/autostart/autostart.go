// Package autostart starts the tray service at login.
package autostart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const (
	appLabel   = "com.nqd1.macrorecorder"
	appName    = "MacroRecorder"
	entryMode  = 0o644
	entryDirFS = 0o755
)

// ErrUnsupported is returned on platforms without a login-item mechanism
var ErrUnsupported = errors.New("autostart: unsupported platform")

var macLaunchAgentPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`))

var xdgDesktopEntry = template.Must(template.New("desktop").Parse(`[Desktop Entry]
Type=Application
Name={{.Name}}
Exec="{{.ExecutablePath}}"
X-GNOME-Autostart-enabled=true
`))

type entry struct {
	Label          string
	Name           string
	ExecutablePath string
}

// userHomeDir is replaced in tests
var (
	defaultHomeDir = os.UserHomeDir
	userHomeDir    = defaultHomeDir
)

// Enable enables auto-start on login
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return enableWindows(execPath)
	case "darwin", "linux":
		path, tmpl, err := entryFile()
		if err != nil {
			return err
		}
		return writeEntry(path, tmpl, execPath)
	}
	return ErrUnsupported
}

// Disable disables auto-start on login
func Disable() error {
	switch runtime.GOOS {
	case "windows":
		return disableWindows()
	case "darwin", "linux":
		path, _, err := entryFile()
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}
	return ErrUnsupported
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	switch runtime.GOOS {
	case "windows":
		return isEnabledWindows()
	case "darwin", "linux":
		path, _, err := entryFile()
		if err != nil {
			return false
		}
		_, err = os.Stat(path)
		return err == nil
	}
	return false
}

// Toggle flips the login item and returns the new state
func Toggle() (bool, error) {
	if IsEnabled() {
		return false, Disable()
	}
	return true, Enable()
}

// entryFile returns the login item location and its template for this OS
func entryFile() (string, *template.Template, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", nil, err
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", appLabel+".plist"), macLaunchAgentPlist, nil
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "autostart", "macrorecorder.desktop"), xdgDesktopEntry, nil
}

func writeEntry(path string, tmpl *template.Template, execPath string) error {
	if err := os.MkdirAll(filepath.Dir(path), entryDirFS); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entryMode)
	if err != nil {
		return err
	}
	if err := render(f, tmpl, execPath); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func render(w io.Writer, tmpl *template.Template, execPath string) error {
	return tmpl.Execute(w, entry{Label: appLabel, Name: appName, ExecutablePath: execPath})
}
