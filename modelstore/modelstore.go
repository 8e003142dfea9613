package modelstore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Unpack copies the model tree rooted at src into destDir, preserving
// the directory layout. The copy happens once: when destDir already
// holds any entries, Unpack returns immediately and reports that
// nothing was copied. A partially created destination from an aborted
// earlier run is treated as populated, so callers should clean up on
// failure if they want a retry to copy again.
func Unpack(src fs.FS, destDir string) (bool, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return false, fmt.Errorf("creating model directory: %w", err)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		return false, fmt.Errorf("reading model directory: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}

	err = fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(src, path, target)
	})
	if err != nil {
		return false, fmt.Errorf("unpacking model: %w", err)
	}
	return true, nil
}

func copyFile(src fs.FS, path, target string) error {
	in, err := src.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Dir resolves where the unpacked model lives: the explicit override
// wins, then the SCRIBE_DATA_PATH environment variable, then a
// per-user data directory.
func Dir(override string) (string, error) {
	if override != "" {
		return absPath(override)
	}
	if env := os.Getenv("SCRIBE_DATA_PATH"); env != "" {
		return absPath(env)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "scribe", "model"), nil
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}
