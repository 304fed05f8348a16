package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenPicksPlatformOpener(t *testing.T) {
	path := touch(t)

	tests := []struct {
		goos     string
		wantName string
	}{
		{"darwin", "open"},
		{"windows", "cmd"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}

	for _, tc := range tests {
		var gotName string
		var gotArgs []string
		l := Launcher{
			GOOS: tc.goos,
			start: func(name string, args ...string) error {
				gotName = name
				gotArgs = args
				return nil
			},
		}

		if err := l.Open(path); err != nil {
			t.Errorf("Open on %s: %v", tc.goos, err)
			continue
		}
		if gotName != tc.wantName {
			t.Errorf("opener on %s = %q, want %q", tc.goos, gotName, tc.wantName)
		}
		if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != path {
			t.Errorf("opener args on %s = %v, want path as last argument", tc.goos, gotArgs)
		}
	}
}

func TestOpenMissingPath(t *testing.T) {
	l := Launcher{
		GOOS:  "linux",
		start: func(string, ...string) error { return nil },
	}

	if err := l.Open(filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Error("expected error for missing path, got nil")
	}
}

func TestOpenReportsSpawnFailure(t *testing.T) {
	path := touch(t)
	spawnErr := errors.New("no opener installed")
	l := Launcher{
		GOOS:  "linux",
		start: func(string, ...string) error { return spawnErr },
	}

	err := l.Open(path)
	if !errors.Is(err, spawnErr) {
		t.Errorf("Open error = %v, want wrapped spawn failure", err)
	}
}
