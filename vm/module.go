package vm

import (
	"fmt"

	"github.com/chazu/nex/pkg/bytecode"
)

// Module is a loaded image together with the globals it owns. The program
// being run is the main module; other modules are registered by the host
// and reached through CALLMF, PUSHPMG and cross-module function values.
type Module struct {
	Name    string
	Image   *bytecode.Image
	Globals []Cell

	// Exports maps global names to slots for PUSHPMG. Version 1 objects do
	// not carry a variable export section, so the host supplies it.
	Exports map[string]int
}

// NewModule creates a module with zeroed globals.
func NewModule(name string, img *bytecode.Image, exports map[string]int) *Module {
	if exports == nil {
		exports = make(map[string]int)
	}
	return &Module{
		Name:    name,
		Image:   img,
		Globals: make([]Cell, img.GlobalSize),
		Exports: exports,
	}
}

func (m *Module) className(i int) string {
	if i < 0 || i >= len(m.Image.Classes) {
		return fmt.Sprintf("<class %d>", i)
	}
	name, err := m.Image.String(m.Image.Classes[i].Name)
	if err != nil {
		return fmt.Sprintf("<class %d>", i)
	}
	if m.Name != "" {
		return m.Name + "." + name
	}
	return name
}
