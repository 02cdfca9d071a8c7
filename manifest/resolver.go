package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
	"github.com/chazu/nex/vm/dist"
)

// ValidateModuleName checks a [modules] key. CALLMF, PUSHPMG and PUSHCI
// split qualified names at the first dot, so module names cannot contain
// one.
func ValidateModuleName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("module name is empty")
	case strings.ContainsAny(name, ". \t\n"):
		return fmt.Errorf("module name %q contains a dot or whitespace", name)
	}
	return nil
}

// ModuleNames returns the configured module names in sorted order.
func (m *Manifest) ModuleNames() []string {
	names := make([]string, 0, len(m.Modules))
	for name := range m.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadModules reads and loads every configured module with the manifest's
// loader options. Modules are returned in name order; the first failure
// names the module it came from.
func (m *Manifest) LoadModules() ([]*vm.Module, error) {
	return m.LoadModulesWith(m.ImageCache())
}

// ImageCache returns an image cache using the manifest's loader options.
func (m *Manifest) ImageCache() *dist.ImageCache {
	return dist.NewImageCache(len(m.Modules)+1, bytecode.WithOptions(m.LoaderOptions()))
}

// LoadModulesWith is LoadModules decoding through cache, so modules that
// share an object file share one image.
func (m *Manifest) LoadModulesWith(cache *dist.ImageCache) ([]*vm.Module, error) {
	var modules []*vm.Module
	for _, name := range m.ModuleNames() {
		cfg := m.Modules[name]
		if cfg.Path == "" {
			return nil, fmt.Errorf("module %q has no path", name)
		}
		path := m.ModulePath(name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("module %q not found at %s: %w", name, path, err)
		}
		img, err := cache.Load(data)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		for export, slot := range cfg.Exports {
			if slot < 0 || slot >= img.GlobalSize {
				return nil, fmt.Errorf("module %q exports %s at slot %d, but has %d globals", name, export, slot, img.GlobalSize)
			}
		}
		modules = append(modules, vm.NewModule(name, img, cfg.Exports))
	}
	return modules, nil
}
