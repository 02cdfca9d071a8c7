package vm

import "github.com/chazu/nex/pkg/bytecode"

// ---------------------------------------------------------------------------
// Immediates, addresses, loads and stores
// ---------------------------------------------------------------------------

func (e *Executor) opPushN() {
	text := e.readString()
	n, err := bytecode.ParseNumber(text)
	if err != nil {
		e.fail(ErrInvalidNumber, "%q", text)
	}
	e.push(Number(n))
}

func (e *Executor) opPushPG() {
	slot := e.readVarint()
	if slot >= len(e.module.Globals) {
		e.fail(ErrBadAddress, "global %d of %d", slot, len(e.module.Globals))
	}
	kind := PointerGlobal
	if e.module != e.main {
		kind = PointerModuleGlobal
	}
	e.push(PointerCell(&Pointer{Kind: kind, Module: e.module, Index: slot}))
}

func (e *Executor) opPushPPG() {
	name := e.readString()
	if _, ok := e.predefined[name]; !ok {
		e.fail(ErrUnknownGlobal, "predefined %s", name)
	}
	e.push(PointerCell(&Pointer{Kind: PointerPredefined, Name: name}))
}

func (e *Executor) opPushPMG() {
	modName := e.readString()
	name := e.readString()
	m := e.lookupModule(modName)
	slot, ok := m.Exports[name]
	if !ok {
		e.fail(ErrUnknownGlobal, "%s.%s", modName, name)
	}
	if slot < 0 || slot >= len(m.Globals) {
		e.fail(ErrBadAddress, "%s.%s slot %d of %d", modName, name, slot, len(m.Globals))
	}
	e.push(PointerCell(&Pointer{Kind: PointerModuleGlobal, Module: m, Index: slot}))
}

func (e *Executor) opPushPL() {
	slot := e.readVarint()
	f := e.currentFrame()
	if slot >= len(f.Locals) {
		e.fail(ErrBadAddress, "local %d of %d", slot, len(f.Locals))
	}
	e.push(PointerCell(&Pointer{Kind: PointerLocal, Frame: f, Index: slot}))
}

func (e *Executor) opPushPOL() {
	hops := e.readVarint()
	slot := e.readVarint()
	f := e.currentFrame()
	for ; hops > 0; hops-- {
		if f.Outer == nil {
			e.fail(ErrFrameChain, "no enclosing frame %d levels out", hops)
		}
		f = f.Outer
	}
	if slot >= len(f.Locals) {
		e.fail(ErrBadAddress, "outer local %d of %d", slot, len(f.Locals))
	}
	e.push(PointerCell(&Pointer{Kind: PointerOuterLocal, Frame: f, Index: slot}))
}

func (e *Executor) opPushPEG() {
	name := e.readString()
	if _, ok := e.bridge.ExternalGlobals[name]; !ok {
		e.fail(ErrUnknownGlobal, "external %s", name)
	}
	e.push(PointerCell(&Pointer{Kind: PointerExternal, Name: name}))
}

func (e *Executor) currentFrame() *Frame {
	if len(e.frames) == 0 {
		panic(e.fault(ErrNoFrame))
	}
	return e.frames[len(e.frames)-1]
}

// opLoad pushes a copy of the cell a pointer addresses. An unwritten
// location loads as the uninitialized marker.
func (e *Executor) opLoad(k Kind) {
	c := e.mustResolve(e.popPointer()).get()
	if !storable(k, c.kind) {
		e.fail(ErrTypeMismatch, "load %s from a location holding %s", k, c.kind)
	}
	e.push(c.Clone())
}

// opStore pops a pointer and then the value to write through it.
func (e *Executor) opStore(k Kind) {
	p := e.popPointer()
	v := e.pop()
	if !storable(k, v.kind) {
		e.fail(ErrTypeMismatch, "store %s through a %s store", v.kind, k)
	}
	e.mustResolve(p).set(v.Clone())
}

// storable reports whether a cell of kind actual may pass through a load or
// store of kind k. Function and class values travel through pointer-typed
// slots, which is where records keep their class.
func storable(k, actual Kind) bool {
	switch actual {
	case k, KindNone:
		return true
	case KindFunction, KindClass:
		return k == KindPointer
	}
	return false
}
