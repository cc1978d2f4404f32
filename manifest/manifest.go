// Package manifest handles c2script.toml (or c2script.yaml) project
// configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/chazu/c2script/vm"
)

// File names searched for, in order of preference.
const (
	TOMLName = "c2script.toml"
	YAMLName = "c2script.yaml"
)

// Manifest represents a c2script project configuration.
type Manifest struct {
	Project   Project         `toml:"project" yaml:"project"`
	Source    Source          `toml:"source" yaml:"source"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Journal   JournalConfig   `toml:"journal" yaml:"journal"`

	// Dir is the directory containing the manifest (set at load time).
	Dir string `toml:"-" yaml:"-"`
	// Path is the manifest file itself, empty for Default.
	Path string `toml:"-" yaml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name" yaml:"name"`
	Version string `toml:"version" yaml:"version"`
}

// Source configures where compiled units come from.
type Source struct {
	Dirs []string `toml:"dirs" yaml:"dirs"`
	// Entry is the object or assembler file run when none is given.
	Entry string `toml:"entry" yaml:"entry"`
}

// SchedulerConfig configures the process list.
type SchedulerConfig struct {
	DefaultPriority int  `toml:"default-priority" yaml:"default-priority"`
	MaxStack        int  `toml:"max-stack" yaml:"max-stack"`
	MaxFrames       int  `toml:"max-frames" yaml:"max-frames"`
	Optimize        bool `toml:"optimize" yaml:"optimize"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity" yaml:"verbosity"`
	File      string `toml:"file" yaml:"file"`
}

// JournalConfig configures the process journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Default returns the configuration used when no manifest exists.
func Default(dir string) *Manifest {
	opts := vm.DefaultOptions()
	return &Manifest{
		Source: Source{Dirs: []string{"src"}},
		Scheduler: SchedulerConfig{
			DefaultPriority: opts.DefaultPriority,
			MaxStack:        opts.MaxStackDepth,
			MaxFrames:       opts.MaxFrameDepth,
			Optimize:        true,
		},
		Journal: JournalConfig{Path: filepath.Join(".c2script", "journal.db")},
		Dir:     dir,
	}
}

// Load parses the manifest in dir, preferring c2script.toml over
// c2script.yaml.
func Load(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	path := filepath.Join(abs, TOMLName)
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(abs, YAMLName)
	}
	return LoadFile(path)
}

// LoadFile parses the given manifest file. The format follows the file
// extension. Settings absent from the file keep their defaults.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	m := Default(dir)
	m.Path = path

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, m)
	default:
		err = toml.Unmarshal(data, m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a manifest, then loads and
// returns it. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		for _, name := range []string{TOMLName, YAMLName} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return Load(dir)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects settings the runtime cannot honour.
func (m *Manifest) Validate() error {
	var errs []error
	if m.Scheduler.MaxStack < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max-stack must not be negative"))
	}
	if m.Scheduler.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("scheduler.max-frames must not be negative"))
	}
	if m.Log.Verbosity < -4 || m.Log.Verbosity > 2 {
		errs = append(errs, fmt.Errorf("log.verbosity must be between -4 and 2"))
	}
	return errors.Join(errs...)
}

// Options converts the scheduler section into process list options.
func (m *Manifest) Options() vm.Options {
	return vm.Options{
		DefaultPriority: m.Scheduler.DefaultPriority,
		MaxStackDepth:   m.Scheduler.MaxStack,
		MaxFrameDepth:   m.Scheduler.MaxFrames,
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the absolute path of the entry file, or "" if unset.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// JournalPath returns the absolute path of the journal database.
func (m *Manifest) JournalPath() string {
	return m.resolve(m.Journal.Path)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
