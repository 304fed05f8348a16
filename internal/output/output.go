// Package output resolves where scan artifacts are written.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const dirName = "Scanhub Scans"

// Resolver yields the directory scan artifacts land in, creating it when
// missing. The zero value resolves under the user documents directory.
type Resolver struct {
	// Base overrides the documents directory when non-empty.
	Base string
}

// Dir returns the output directory, creating it idempotently.
func (r Resolver) Dir() (string, error) {
	base := r.Base
	if base == "" {
		base = xdg.UserDirs.Documents
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve documents directory: %w", err)
			}
			base = filepath.Join(home, "Documents")
		}
		base = filepath.Join(base, dirName)
	}

	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return base, nil
}
