package config

import (
	"os"
	"path/filepath"
)

// binaryDir is the directory of the running binary, or "." when it cannot be
// determined.
func binaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// RuntimeDir resolves dir, or fallback when dir is empty, against the binary's
// directory. Absolute paths are kept.
func RuntimeDir(dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(binaryDir(), dir)
}
