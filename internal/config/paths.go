package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the directories the pipeline reads and writes.
// All paths are absolute after resolution.
type Paths struct {
	DataDir   string
	OutputDir string
	WebDir    string
	LogsDir   string
}

// NewPaths resolves the configured paths against the working directory.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		DataDir:   resolve(cfg.DataDir),
		OutputDir: resolve(cfg.OutputDir),
		WebDir:    resolve(cfg.WebDir),
		LogsDir:   resolve(cfg.LogsDir),
	}, nil
}

// EnsureDirectories creates the writable directories if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// OutputPath returns the path of an output artifact.
func (p *Paths) OutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// DataPath returns the path of an input file.
func (p *Paths) DataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// LogPath returns the path of a log file.
func (p *Paths) LogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists reports whether the path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
