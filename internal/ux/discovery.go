package ux

import (
	"os"
	"path/filepath"
)

// DiscoverConfigFile looks for filename in start and its parents, stopping
// after the first directory that holds a .git entry. When nothing is found
// it returns the path filename would have in start, and found is false.
func DiscoverConfigFile(start, filename string) (path string, found bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}

		// Stop at the repository root
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return filepath.Join(start, filename), false
}
