// Package manifest handles nex.toml executor configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
	"github.com/chazu/nex/vm/dist"
)

// FileName is the configuration file looked up next to object files.
const FileName = "nex.toml"

// Manifest represents a nex.toml configuration.
type Manifest struct {
	Executor   Executor                `toml:"executor"`
	Loader     Loader                  `toml:"loader"`
	Log        Log                     `toml:"log"`
	Modules    map[string]ModuleConfig `toml:"modules"`
	Externals  map[string]string       `toml:"externals"`
	Capability Capability              `toml:"capabilities"`

	// Dir is the directory containing the nex.toml file (set at load time).
	Dir string `toml:"-"`
}

// Executor configures the dispatch engine.
type Executor struct {
	RecursionLimit int    `toml:"recursion-limit"`
	Trace          bool   `toml:"trace"`
	ExecutorName   string `toml:"executor-name"`

	// History is a SQLite database recording the final state of each run.
	History string `toml:"history"`
}

// Loader selects object format extensions.
type Loader struct {
	LegacyTypeCount bool `toml:"legacy-type-count"`
	ExceptionTable  bool `toml:"exception-table"`
	ClassTable      bool `toml:"class-table"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Capability restricts the host names an object file may call. An empty
// Allow list allows everything not denied.
type Capability struct {
	Allow []string `toml:"allow"`
	Deny  []string `toml:"deny"`
}

// ModuleConfig names an object file to register as a module, with the
// global slots it exports by name.
type ModuleConfig struct {
	Path    string         `toml:"path"`
	Exports map[string]int `toml:"exports"`
}

// Load parses a nex.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at an explicit path. Relative module
// paths resolve against the file's directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes nex.toml content and applies defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for name := range m.Modules {
		if err := ValidateModuleName(name); err != nil {
			return nil, err
		}
	}

	// Defaults
	if m.Executor.RecursionLimit <= 0 {
		m.Executor.RecursionLimit = vm.DefaultRecursionLimit
	}
	if m.Executor.ExecutorName == "" {
		m.Executor.ExecutorName = vm.DefaultExecutorName
	}
	return &m, nil
}

// Default returns the configuration used when no nex.toml is found.
func Default() *Manifest {
	m, _ := Parse(nil)
	return m
}

// FindAndLoad walks up from startDir to find a nex.toml file,
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

// LoaderOptions returns the object loader options selected by [loader].
func (m *Manifest) LoaderOptions() bytecode.Options {
	return bytecode.Options{
		LegacyTypeCount: m.Loader.LegacyTypeCount,
		ExceptionTable:  m.Loader.ExceptionTable,
		ClassTable:      m.Loader.ClassTable,
	}
}

// ExecutorOptions returns the executor options selected by [executor].
func (m *Manifest) ExecutorOptions() []vm.Option {
	return []vm.Option{
		vm.WithRecursionLimit(m.Executor.RecursionLimit),
		vm.WithTrace(m.Executor.Trace),
		vm.WithExecutorName(m.Executor.ExecutorName),
	}
}

// Policy returns the capability policy selected by [capabilities].
func (m *Manifest) Policy() *dist.CapabilityPolicy {
	p := dist.NewPermissivePolicy()
	if len(m.Capability.Allow) > 0 {
		p = dist.NewRestrictedPolicy(m.Capability.Allow)
	}
	for _, name := range m.Capability.Deny {
		p.Deny(name)
	}
	return p
}

// ApplyExternals publishes [externals] as string globals on the bridge.
func (m *Manifest) ApplyExternals(b *vm.Bridge) {
	for name, value := range m.Externals {
		b.SetExternal(name, vm.String(value))
	}
}

// ModulePath returns the absolute path of a module's object file.
func (m *Manifest) ModulePath(name string) string {
	return m.resolve(m.Modules[name].Path)
}

// HistoryPath returns the absolute path of the run history database, or ""
// when none is configured.
func (m *Manifest) HistoryPath() string {
	if m.Executor.History == "" {
		return ""
	}
	return m.resolve(m.Executor.History)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
