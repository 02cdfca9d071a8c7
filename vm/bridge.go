package vm

import (
	"fmt"
	"io"
	"sort"
)

// ---------------------------------------------------------------------------
// Builtin/Extension Bridge
// ---------------------------------------------------------------------------

// Machine is the view of a running executor that builtins receive. Values
// are exchanged through the operand stack, exactly as compiled code passes
// them.
type Machine interface {
	Pop() (Cell, error)
	Push(c Cell)
	Load(p *Pointer) (Cell, error)
	Store(p *Pointer, c Cell) error
	Stdout() io.Writer
	ExecutorName() string
	RecursionLimit() int
	SetRecursionLimit(n int)
	Args() []string
}

// Builtin is a predefined function reached through CALLP. Returning an
// *Exception raises it in the program; an *ExitError ends the run; any other
// error is a fault at the calling instruction.
type Builtin func(m Machine) error

// Extension is a host function reached through CALLX. It receives the
// input cells and returns the result plus any out parameters.
type Extension func(in []Cell) (ret Cell, out []Cell, err error)

// Bridge holds everything the host makes callable or addressable from a
// program.
type Bridge struct {
	Builtins        map[string]Builtin
	Extensions      map[string]Extension
	ExternalGlobals map[string]*Cell
}

// NewBridge creates a bridge holding the core builtins.
func NewBridge() *Bridge {
	b := &Bridge{
		Builtins:        make(map[string]Builtin),
		Extensions:      make(map[string]Extension),
		ExternalGlobals: make(map[string]*Cell),
	}
	b.Register("print", builtinPrint)
	b.Register("runtime$executorName", builtinExecutorName)
	return b
}

// Register adds or replaces a builtin.
func (b *Bridge) Register(name string, fn Builtin) {
	b.Builtins[name] = fn
}

// RegisterExtension adds an extension under module.function.
func (b *Bridge) RegisterExtension(module, function string, fn Extension) {
	b.Extensions[extensionKey(module, function)] = fn
}

// SetExternal publishes a host global for PUSHPEG.
func (b *Bridge) SetExternal(name string, c Cell) {
	v := c
	b.ExternalGlobals[name] = &v
}

// BuiltinNames lists the registered builtins in sorted order.
func (b *Bridge) BuiltinNames() []string {
	names := make([]string, 0, len(b.Builtins))
	for name := range b.Builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func extensionKey(module, function string) string {
	return module + "." + function
}

func builtinPrint(m Machine) error {
	c, err := m.Pop()
	if err != nil {
		return err
	}
	if c.Kind() != KindString && !c.IsNone() {
		return fmt.Errorf("%w: print expects string, got %s", ErrTypeMismatch, c.Kind())
	}
	_, err = io.WriteString(m.Stdout(), c.Str()+"\n")
	return err
}

func builtinExecutorName(m Machine) error {
	m.Push(String(m.ExecutorName()))
	return nil
}
