// Package debugclient implements the interactive terminal UI for
// tere-debug-client-sessions: a small bubbletea app that walks the
// operator through a CreateShellSession request against the sessions
// broker, then attaches a raw terminal view to the resulting pty
// session.
package debugclient

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Defaults holds the operator's locally remembered form values, read
// from and written to a small toml file under their home directory.
// This is local client convenience only: the daemons themselves take
// no configuration from here.
type Defaults struct {
	Machine string `toml:"machine,omitempty"`
	User    string `toml:"user,omitempty"`
	Program string `toml:"program,omitempty"`
}

// defaultsDirOverride lets tests point DefaultsPath elsewhere.
var defaultsDirOverride string

// SetDefaultsDir overrides the directory DefaultsPath resolves under.
func SetDefaultsDir(dir string) {
	defaultsDirOverride = dir
}

func defaultsDir() string {
	if defaultsDirOverride != "" {
		return defaultsDirOverride
	}
	if v := os.Getenv("TERE_DEBUG_CLIENT_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tere")
	}
	return filepath.Join(home, ".tere")
}

// DefaultsPath returns the full path to the defaults file.
func DefaultsPath() string {
	return filepath.Join(defaultsDir(), "debug-client.toml")
}

// LoadDefaults reads the defaults file, returning a zero value if it
// does not exist yet.
func LoadDefaults() (*Defaults, error) {
	d := &Defaults{}
	data, err := os.ReadFile(DefaultsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("reading %s: %w", DefaultsPath(), err)
	}
	if err := toml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", DefaultsPath(), err)
	}
	return d, nil
}

// SaveDefaults writes d back to the defaults file, creating its
// directory if needed.
func SaveDefaults(d *Defaults) error {
	if err := os.MkdirAll(defaultsDir(), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", defaultsDir(), err)
	}
	data, err := toml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}
	return os.WriteFile(DefaultsPath(), data, 0o644)
}
