package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/nex/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Calls, returns and dynamic dispatch
// ---------------------------------------------------------------------------

// invoke enters function index of module m. The return address is the
// instruction following the call, which the caller has already decoded.
func (e *Executor) invoke(m *Module, index int) {
	fn, err := m.Image.Function(uint64(index))
	if err != nil {
		e.fail(ErrUnknownFunction, "%v", err)
	}
	if len(e.frames) >= e.recursionLimit {
		e.raise(ExceptionStackOverflow, None)
	}
	if fn.Nest < 0 || fn.Params < 0 || fn.Locals > bytecode.MaxFrameSlots {
		e.fail(ErrFrameChain, "%s declares nest %d, %d params, %d locals", m.Image.FunctionName(index), fn.Nest, fn.Params, fn.Locals)
	}
	if fn.Locals < fn.Params {
		e.fail(ErrFrameChain, "%s has %d params but %d locals", m.Image.FunctionName(index), fn.Params, fn.Locals)
	}
	if fn.Params > len(e.stack) {
		panic(e.fault(ErrStackUnderflow))
	}

	// The enclosing frame is the innermost active frame at a shallower
	// nesting depth.
	var outer *Frame
	if len(e.frames) > 0 {
		top := e.frames[len(e.frames)-1]
		if fn.Nest > top.Nest+1 {
			e.fail(ErrFrameChain, "call to nest %d from nest %d", fn.Nest, top.Nest)
		}
		outer = top
		for outer != nil && fn.Nest <= outer.Nest {
			outer = outer.Outer
		}
	}

	f := &Frame{
		Function:     fn,
		Index:        index,
		Module:       m,
		Nest:         fn.Nest,
		Outer:        outer,
		Locals:       make([]Cell, fn.Locals),
		ReturnIP:     e.ip,
		ReturnModule: e.module,
	}
	if e.stackParams {
		f.StackBase = len(e.stack) - fn.Params
	} else {
		args := e.stack[len(e.stack)-fn.Params:]
		copy(f.Locals, args)
		e.stack = e.stack[:len(e.stack)-fn.Params]
		f.StackBase = len(e.stack)
	}

	e.frames = append(e.frames, f)
	e.module = m
	e.ip = fn.Entry
}

// opRet leaves the current frame. With no frame the program ends.
func (e *Executor) opRet() {
	if len(e.frames) == 0 {
		e.module = e.main
		e.ip = len(e.main.Image.Code)
		return
	}
	f := e.frames[len(e.frames)-1]
	e.frames[len(e.frames)-1] = nil
	e.frames = e.frames[:len(e.frames)-1]
	e.module = f.ReturnModule
	e.ip = f.ReturnIP
}

func (e *Executor) opCallF() {
	e.invoke(e.module, e.readVarint())
}

func (e *Executor) opCallMF() {
	modName := e.readString()
	name := e.readString()
	m := e.lookupModule(modName)
	index, ok := m.Image.LookupFunction(name)
	if !ok {
		e.fail(ErrUnknownFunction, "%s.%s", modName, name)
	}
	e.invoke(m, index)
}

func (e *Executor) opCallI() {
	c := e.pop()
	if c.kind != KindFunction {
		e.fail(ErrTypeMismatch, "indirect call through %s", c.kind)
	}
	f := c.Function()
	e.invoke(f.Module, f.Index)
}

// opCallV dispatches through the class stored in field 0 of the receiver.
// The receiver is either a [pointer, interface] pair or a bare pointer,
// which selects interface 0.
func (e *Executor) opCallV() {
	slot := e.readVarint()
	recv := e.pop()
	iface := 0
	if recv.kind == KindArray {
		pair := recv.Array().Elems
		if len(pair) != 2 || pair[0].kind != KindPointer || pair[1].kind != KindNumber {
			e.fail(ErrInvalidDispatch, "receiver %s", recv.Literal())
		}
		recv, iface = pair[0], int(pair[1].n)
	}
	if recv.kind != KindPointer {
		e.fail(ErrInvalidDispatch, "receiver is %s", recv.kind)
	}
	obj := e.mustResolve(recv.Pointer()).get()

	var fields []Cell
	switch obj.kind {
	case KindObject:
		fields = obj.Object().Fields
	case KindArray:
		fields = obj.Array().Elems
	}
	if len(fields) == 0 || fields[0].kind != KindClass {
		e.fail(ErrInvalidDispatch, "receiver has no class")
	}
	ref := fields[0].Class()
	class := ref.Module.Image.Classes[ref.Index]
	if iface < 0 || iface >= len(class.Interfaces) || slot >= len(class.Interfaces[iface]) {
		e.fail(ErrInvalidDispatch, "%s has no method %d in interface %d", ref.Module.className(ref.Index), slot, iface)
	}
	e.invoke(ref.Module, class.Interfaces[iface][slot])
}

// opPushCI pushes a class by name. A dotted name selects a class from a
// registered module.
func (e *Executor) opPushCI() {
	name := e.readString()
	m := e.module
	className := name
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		m = e.lookupModule(name[:dot])
		className = name[dot+1:]
	}
	index, ok := m.Image.LookupClass(className)
	if !ok {
		e.fail(ErrUnknownClass, "%s", name)
	}
	e.push(ClassCell(m, index))
}

// opAlloc pushes a pointer to a new object with n uninitialized fields.
func (e *Executor) opAlloc() {
	n := e.readVarint()
	c := ObjectCell(&Object{Fields: make([]Cell, n)})
	e.push(PointerCell(&Pointer{Kind: PointerHeap, Target: &c}))
}

func (e *Executor) lookupModule(name string) *Module {
	m, ok := e.modules[name]
	if !ok {
		e.fail(ErrUnknownModule, "%s", name)
	}
	return m
}

// ---------------------------------------------------------------------------
// Host calls
// ---------------------------------------------------------------------------

func (e *Executor) opCallP() {
	name := e.readString()
	fn, ok := e.bridge.Builtins[name]
	if !ok {
		e.fail(ErrUnknownBuiltin, "%s", name)
	}
	e.hostResult(name, fn(e))
}

// opCallX pops the input array, calls the extension and pushes the result
// followed by the out parameters.
func (e *Executor) opCallX() {
	modName := e.readString()
	name := e.readString()
	outs := e.readVarint()
	fn, ok := e.bridge.Extensions[extensionKey(modName, name)]
	if !ok {
		e.fail(ErrUnknownExtension, "%s.%s", modName, name)
	}
	in := e.popArray()
	args := make([]Cell, len(in.Elems))
	for i, c := range in.Elems {
		args[i] = c.Clone()
	}
	ret, out, err := fn(args)
	e.hostResult(modName+"."+name, err)
	if len(out) != outs {
		e.fail(ErrTypeMismatch, "%s.%s returned %d out parameters, want %d", modName, name, len(out), outs)
	}
	e.push(ret)
	for _, c := range out {
		e.push(c)
	}
}

// hostResult maps an error returned by host code onto the run.
func (e *Executor) hostResult(name string, err error) {
	if err == nil {
		return
	}
	var x *Exception
	if errors.As(err, &x) {
		e.raise(x.Name, x.Info)
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		panic(exit)
	}
	var f *Fault
	if errors.As(err, &f) {
		panic(f)
	}
	panic(e.fault(fmt.Errorf("%s: %w", name, err)))
}
