package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Enable registers the daemon to launch at login
func Enable() error {
	switch runtime.GOOS {
	case "darwin":
		return enableMacOS()
	case "linux":
		return enableLinux()
	case "windows":
		return enableWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable removes the daemon from login startup
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return disableMacOS()
	case "linux":
		return disableLinux()
	case "windows":
		return disableWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if the daemon is registered for startup
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return isEnabledMacOS()
	case "linux":
		return isEnabledLinux()
	case "windows":
		return isEnabledWindows()
	default:
		return false
	}
}

// --- macOS Implementation ---

const macOSPlistName = "com.gopher-apc.plist"

func macOSPlistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", macOSPlistName)
}

func enableMacOS() error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	plistContent := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.gopher-apc</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
</dict>
</plist>
`, execPath)

	// Ensure LaunchAgents directory exists
	dir := filepath.Dir(macOSPlistPath())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(macOSPlistPath(), []byte(plistContent), 0644)
}

func disableMacOS() error {
	path := macOSPlistPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Already disabled
	}
	return os.Remove(path)
}

func isEnabledMacOS() bool {
	_, err := os.Stat(macOSPlistPath())
	return err == nil
}

// --- Linux Implementation ---
//
// A headless daemon fits a systemd user service better than an XDG
// autostart entry: it gets restarted on crashes and can be inspected
// with systemctl --user status.

const linuxUnitName = "gopher-apc.service"

func linuxUnitPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "systemd", "user", linuxUnitName)
}

func enableLinux() error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	unitContent := fmt.Sprintf(`[Unit]
Description=APC mini plugin multiplexer
After=sound.target

[Service]
ExecStart=%s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`, execPath)

	dir := filepath.Dir(linuxUnitPath())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(linuxUnitPath(), []byte(unitContent), 0644); err != nil {
		return err
	}

	cmd := exec.Command("systemctl", "--user", "enable", linuxUnitName)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl enable failed: %s", strings.TrimSpace(string(output)))
	}
	return nil
}

func disableLinux() error {
	if _, err := os.Stat(linuxUnitPath()); os.IsNotExist(err) {
		return nil // Already disabled
	}

	cmd := exec.Command("systemctl", "--user", "disable", linuxUnitName)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl disable failed: %s", strings.TrimSpace(string(output)))
	}
	return os.Remove(linuxUnitPath())
}

func isEnabledLinux() bool {
	_, err := os.Stat(linuxUnitPath())
	return err == nil
}

// --- Windows Implementation ---

const windowsRegistryKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`
const windowsAppName = "GopherAPC"

func enableWindows() error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	// Use reg.exe to add the registry key
	cmd := exec.Command("reg", "add", windowsRegistryKey,
		"/v", windowsAppName,
		"/t", "REG_SZ",
		"/d", execPath,
		"/f")
	return cmd.Run()
}

func disableWindows() error {
	cmd := exec.Command("reg", "delete", windowsRegistryKey,
		"/v", windowsAppName,
		"/f")
	output, err := cmd.CombinedOutput()
	// Ignore error if the key doesn't exist
	if err != nil && !strings.Contains(string(output), "The system was unable to find the specified registry key or value") {
		return err
	}
	return nil
}

func isEnabledWindows() bool {
	cmd := exec.Command("reg", "query", windowsRegistryKey,
		"/v", windowsAppName)
	err := cmd.Run()
	return err == nil
}
