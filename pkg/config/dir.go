package config

import (
	"os"
	"path/filepath"
)

// DirName is the name of the per-project configuration directory.
const DirName = ".ghostshell"

// Dir is a value object that resolves paths within a .ghostshell/ directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at the given path. The path is converted to an
// absolute path. No I/O is performed.
func NewDir(root string) Dir {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	return Dir{root: abs}
}

// Root returns the absolute path to the directory.
func (d Dir) Root() string { return d.root }

// ConfigPath returns the path to the main config file.
func (d Dir) ConfigPath() string { return filepath.Join(d.root, "config.yaml") }

// EnvPath returns the path to the optional .env file kept next to the config.
func (d Dir) EnvPath() string { return filepath.Join(d.root, ".env") }

// GitignorePath returns the path to the .gitignore file inside the directory.
func (d Dir) GitignorePath() string { return filepath.Join(d.root, ".gitignore") }

// Exists reports whether the root directory exists on disk.
func (d Dir) Exists() bool {
	info, err := os.Stat(d.root)

	return err == nil && info.IsDir()
}

// EnsureStructure creates the directory and a .gitignore that keeps the
// .env file out of version control. Existing files are left untouched.
func (d Dir) EnsureStructure() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return err
	}

	if _, err := os.Stat(d.GitignorePath()); os.IsNotExist(err) {
		return os.WriteFile(d.GitignorePath(), []byte(".env\n"), 0o600)
	}

	return nil
}
