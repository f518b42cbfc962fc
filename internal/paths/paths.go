package paths

import (
	"os"
	"path/filepath"
)

const appName = "sentryctl"

func DefaultRuntimeDir() string {
	if x := os.Getenv("XDG_RUNTIME_DIR"); x != "" {
		return filepath.Join(x, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appName)
}

func DefaultStateDir() string {
	if x := os.Getenv("XDG_STATE_HOME"); x != "" {
		return filepath.Join(x, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", appName)
}

func DefaultConfigDir() string {
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

func DefaultSocketPath() string { return filepath.Join(DefaultRuntimeDir(), "session.sock") }
func DefaultPIDPath() string    { return filepath.Join(DefaultRuntimeDir(), "session.pid") }
func DefaultInboxDir() string   { return filepath.Join(DefaultStateDir(), "inbox") }

// PendingPath is where the staged drop folder survives between CLI invocations.
func PendingPath(stateDir string) string { return filepath.Join(stateDir, "pending.yaml") }

// JournalPath is the sqlite file holding the backend invocation history.
func JournalPath(stateDir string) string { return filepath.Join(stateDir, "journal.db") }
