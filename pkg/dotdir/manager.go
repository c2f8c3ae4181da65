// Package dotdir resolves the .bridge/ directory that holds config.toml and,
// unless configured otherwise, the traffic logs.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".bridge"

	// LogsDirName is the default subdirectory for JSONL traffic logs.
	LogsDirName = "logs"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .bridge/ directory to use.
// Order of precedence:
//  1. Provided override, created if missing
//  2. Local ./.bridge/ dir
//  3. Home ~/.bridge/ dir
//
// An empty string is returned when none of them applies.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating bridge directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, dirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if global := filepath.Join(home, dirName); isDir(global) {
		return global, nil
	}

	return "", nil
}

// LogDir returns the directory traffic logs are written to. An explicit dir
// wins; otherwise logs live under the resolved .bridge/ directory, falling
// back to ~/.bridge/logs. The directory is created if needed.
func (m *Manager) LogDir(explicit, overrideDir string) (string, error) {
	dir := explicit
	if dir == "" {
		target, err := m.Target(overrideDir)
		if err != nil {
			return "", err
		}
		if target == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("getting home directory: %w", err)
			}
			target = filepath.Join(home, dirName)
		}
		dir = filepath.Join(target, LogsDirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
