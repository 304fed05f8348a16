// Package launcher opens files and directories in the host's default
// viewer. Launches are fire-and-forget: failures are reported once and
// never retried.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Launcher spawns the platform opener for a path. The zero value uses the
// running OS; tests may pin GOOS and stub the spawn.
type Launcher struct {
	// GOOS overrides runtime.GOOS when non-empty.
	GOOS string

	// start overrides process spawning for tests.
	start func(name string, args ...string) error
}

// Open reveals path in the host's default viewer or file manager.
func (l Launcher) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	goos := l.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	var name string
	var args []string
	switch goos {
	case "darwin":
		name, args = "open", []string{path}
	case "windows":
		name, args = "cmd", []string{"/c", "start", "", path}
	default:
		name, args = "xdg-open", []string{path}
	}

	start := l.start
	if start == nil {
		start = spawn
	}
	if err := start(name, args...); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// spawn starts the opener without waiting for it to exit.
func spawn(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}
