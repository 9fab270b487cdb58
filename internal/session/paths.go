package session

import (
	"os"
	"path/filepath"
)

// Dir returns the tgwatch data directory: $TGWATCH_DATA_DIR if set,
// otherwise ~/.tgwatch.
func Dir() string {
	if d := os.Getenv("TGWATCH_DATA_DIR"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tgwatch")
}

// DBPath returns the app-owned message database path.
func DBPath() string {
	return filepath.Join(Dir(), "tgwatch.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(Dir(), "logs")
}

// LogPath returns the daemon log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "tgwatchd.log")
}

// ConfigPath returns the optional tunables file path.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// EnsureDir creates the data directory tree with owner-only permissions.
func EnsureDir() error {
	dirs := []string{
		Dir(),
		LogDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
