// Package builtins is the predefined runtime library that compiled programs
// reach through CALLP. Register adds it to a bridge; the executor itself only
// carries print and runtime$executorName.
//
// Builtins take their arguments from the operand stack in the order the
// compiler pushed them, so the last argument is popped first.
package builtins

import (
	"fmt"
	"math"
	"time"

	"github.com/chazu/nex/vm"
)

// Exception names raised by the runtime library.
const (
	ExceptionArrayIndex   = "ArrayIndexException"
	ExceptionBytesIndex   = "BytesIndexException"
	ExceptionStringIndex  = "StringIndexException"
	ExceptionValueRange   = "ValueRangeException"
	ExceptionInvalidValue = "InvalidValueException"
	ExceptionByteRange    = "ByteOutOfRangeException"
)

// Options adjusts the library's view of its environment.
type Options struct {
	Assertions bool
	Now        func() time.Time
}

// Option configures Register.
type Option func(*Options)

// WithAssertions sets what runtime$assertionsEnabled reports.
func WithAssertions(enabled bool) Option {
	return func(o *Options) { o.Assertions = enabled }
}

// WithClock replaces the clock behind time$now.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

type builtin func(a *args) error

// Register adds the runtime library to b, replacing builtins of the same name.
func Register(b *vm.Bridge, opts ...Option) {
	o := Options{Assertions: true, Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	for name, fn := range arrayBuiltins {
		b.Register(name, wrap(fn))
	}
	for name, fn := range bytesBuiltins {
		b.Register(name, wrap(fn))
	}
	for name, fn := range stringBuiltins {
		b.Register(name, wrap(fn))
	}
	for name, fn := range mathBuiltins {
		b.Register(name, wrap(fn))
	}
	for name, fn := range runtimeBuiltins(o) {
		b.Register(name, wrap(fn))
	}
}

// Names lists every builtin Register installs.
func Names() []string {
	var names []string
	for _, set := range []map[string]builtin{arrayBuiltins, bytesBuiltins, stringBuiltins, mathBuiltins, runtimeBuiltins(Options{})} {
		for name := range set {
			names = append(names, name)
		}
	}
	return names
}

func wrap(fn builtin) vm.Builtin {
	return func(m vm.Machine) error {
		a := &args{m: m}
		err := fn(a)
		if a.err != nil {
			return a.err
		}
		return err
	}
}

// ---------------------------------------------------------------------------
// Argument access
// ---------------------------------------------------------------------------

// args pops typed arguments. The first failure sticks: later pops return
// zero values and push does nothing, and wrap reports the failure.
type args struct {
	m   vm.Machine
	err error
}

// value pops an argument of any kind.
func (a *args) value() vm.Cell {
	if a.err != nil {
		return vm.None
	}
	c, err := a.m.Pop()
	if err != nil {
		a.err = err
		return vm.None
	}
	return c
}

func (a *args) pop(k vm.Kind) vm.Cell {
	c := a.value()
	if a.err == nil && c.Kind() != k && !c.IsNone() {
		a.err = fmt.Errorf("%w: expected %s argument, got %s", vm.ErrTypeMismatch, k, c.Kind())
		return vm.None
	}
	return c
}

func (a *args) number() float64 { return a.pop(vm.KindNumber).Num() }
func (a *args) str() string     { return a.pop(vm.KindString).Str() }
func (a *args) boolean() bool   { return a.pop(vm.KindBoolean).Bool() }
func (a *args) bytes() []byte   { return a.pop(vm.KindBytes).ByteSlice() }

// array returns a copy of the element slice, safe to modify.
func (a *args) array() []vm.Cell {
	c := a.pop(vm.KindArray)
	if c.IsNone() {
		return []vm.Cell{}
	}
	return append([]vm.Cell(nil), c.Array().Elems...)
}

func (a *args) dictionary() map[string]vm.Cell {
	c := a.pop(vm.KindDictionary)
	if c.IsNone() {
		return map[string]vm.Cell{}
	}
	return c.Dictionary().Entries
}

func (a *args) pointer() *vm.Pointer {
	c := a.pop(vm.KindPointer)
	if c.IsNone() {
		return vm.NilPointer
	}
	return c.Pointer()
}

func (a *args) push(c vm.Cell) {
	if a.err == nil {
		a.m.Push(c)
	}
}

// update loads the cell p addresses, applies fn and stores the result.
func (a *args) update(p *vm.Pointer, fn func(vm.Cell) vm.Cell) {
	if a.err != nil {
		return
	}
	c, err := a.m.Load(p)
	if err != nil {
		a.err = err
		return
	}
	updated := fn(c)
	if a.err != nil {
		return
	}
	if err := a.m.Store(p, updated); err != nil {
		a.err = err
	}
}

// raise builds an exception carrying a string description.
func raise(name, format string, v ...any) error {
	return vm.NewException(name, vm.String(fmt.Sprintf(format, v...)))
}

// integer reports whether n has no fractional part.
func integer(n float64) bool {
	return n == math.Trunc(n) && !math.IsInf(n, 0)
}

// span resolves the first/last bounds shared by slicing builtins. Bounds
// marked fromEnd count back from the last element; the result is clamped
// to [0, size] and is empty when last precedes first.
func span(size, first int, firstFromEnd bool, last int, lastFromEnd bool) (int, int) {
	if firstFromEnd {
		first += size - 1
	}
	if lastFromEnd {
		last += size - 1
	}
	first = min(max(first, 0), size)
	last = min(max(last, -1), size-1)
	if last < first {
		return first, first
	}
	return first, last + 1
}

// bounds pops first, firstFromEnd, last and lastFromEnd, which the
// compiler pushes in that order.
func (a *args) bounds() (first float64, firstFromEnd bool, last float64, lastFromEnd bool) {
	lastFromEnd = a.boolean()
	last = a.number()
	firstFromEnd = a.boolean()
	first = a.number()
	return
}
