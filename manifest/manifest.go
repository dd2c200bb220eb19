// Package manifest handles graft.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "graft.toml"

// Manifest represents a graft.toml configuration.
type Manifest struct {
	Log     Log     `toml:"log" json:"log"`
	Engine  Engine  `toml:"engine" json:"engine"`
	Runtime Runtime `toml:"runtime" json:"runtime"`
	Trace   Trace   `toml:"trace" json:"trace"`

	// Dir is the directory containing the graft.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	File      string `toml:"file" json:"file"`
}

// Engine configures entry-point rewriting.
type Engine struct {
	AllowStacking bool `toml:"allow-stacking" json:"allow-stacking"`
}

// Runtime configures the VM.
type Runtime struct {
	TierThreshold uint64 `toml:"tier-threshold" json:"tier-threshold"`
}

// Trace selects where intercepted calls are recorded.
type Trace struct {
	Sink      string `toml:"sink" json:"sink"`
	Path      string `toml:"path" json:"path"`
	BatchSize int    `toml:"batch-size" json:"batch-size"`
}

// Trace sinks
const (
	SinkNone   = ""
	SinkMemory = "memory"
	SinkCBOR   = "cbor"
	SinkSQLite = "sqlite"
)

// Default returns the configuration used when no graft.toml exists.
func Default() *Manifest {
	return &Manifest{
		Engine:  Engine{AllowStacking: true},
		Runtime: Runtime{TierThreshold: 1000},
		Trace:   Trace{BatchSize: 256},
	}
}

// Load parses a graft.toml file from the given directory. Keys that are
// absent keep their Default value.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates graft.toml content.
func Parse(data []byte) (*Manifest, error) {
	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a graft.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// TracePath returns the trace path resolved against the manifest
// directory.
func (m *Manifest) TracePath() string {
	p := m.Trace.Path
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// LogFile returns the log file resolved against the manifest directory.
func (m *Manifest) LogFile() string {
	p := m.Log.File
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
