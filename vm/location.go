package vm

import "fmt"

// location is resolved storage: a global or local slot, a heap cell, an
// array element, an object field or a dictionary entry.
type location interface {
	get() Cell
	set(c Cell)
}

type cellLocation struct{ c *Cell }

func (l cellLocation) get() Cell  { return *l.c }
func (l cellLocation) set(c Cell) { *l.c = c }

type elementLocation struct {
	a *Array
	i int
}

func (l elementLocation) get() Cell {
	if l.i >= len(l.a.Elems) {
		return None
	}
	return l.a.Elems[l.i]
}

func (l elementLocation) set(c Cell) {
	for len(l.a.Elems) <= l.i {
		l.a.Elems = append(l.a.Elems, None)
	}
	l.a.Elems[l.i] = c
}

type fieldLocation struct {
	o *Object
	i int
}

func (l fieldLocation) get() Cell  { return l.o.Fields[l.i] }
func (l fieldLocation) set(c Cell) { l.o.Fields[l.i] = c }

type entryLocation struct {
	d   *Dictionary
	key string
}

func (l entryLocation) get() Cell  { return l.d.Entries[l.key] }
func (l entryLocation) set(c Cell) { l.d.Entries[l.key] = c }

// resolve maps a pointer to its storage. Errors wrap the runtime fault
// sentinels so callers can report them against the current instruction.
func (e *Executor) resolve(p *Pointer) (location, error) {
	if p.IsNil() {
		return nil, ErrNilPointer
	}
	switch p.Kind {
	case PointerGlobal, PointerModuleGlobal:
		if p.Index < 0 || p.Index >= len(p.Module.Globals) {
			return nil, fmt.Errorf("%w: global %d of %d", ErrBadAddress, p.Index, len(p.Module.Globals))
		}
		return cellLocation{&p.Module.Globals[p.Index]}, nil

	case PointerLocal, PointerOuterLocal:
		if p.Index < 0 || p.Index >= len(p.Frame.Locals) {
			return nil, fmt.Errorf("%w: local %d of %d", ErrBadAddress, p.Index, len(p.Frame.Locals))
		}
		return cellLocation{&p.Frame.Locals[p.Index]}, nil

	case PointerPredefined:
		c, ok := e.predefined[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: predefined %s", ErrUnknownGlobal, p.Name)
		}
		return cellLocation{c}, nil

	case PointerExternal:
		c, ok := e.bridge.ExternalGlobals[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: external %s", ErrUnknownGlobal, p.Name)
		}
		return cellLocation{c}, nil

	case PointerHeap:
		return cellLocation{p.Target}, nil

	case PointerElement:
		base, err := e.resolve(p.Base)
		if err != nil {
			return nil, err
		}
		container := base.get()
		switch container.Kind() {
		case KindArray:
			return elementLocation{container.Array(), p.Index}, nil
		case KindObject:
			o := container.Object()
			if p.Index >= len(o.Fields) {
				return nil, fmt.Errorf("%w: field %d of %d", ErrIndexOutOfRange, p.Index, len(o.Fields))
			}
			return fieldLocation{o, p.Index}, nil
		}
		return nil, fmt.Errorf("%w: cannot index %s", ErrTypeMismatch, container.Kind())

	case PointerEntry:
		base, err := e.resolve(p.Base)
		if err != nil {
			return nil, err
		}
		container := base.get()
		if container.Kind() != KindDictionary {
			return nil, fmt.Errorf("%w: cannot index %s by key", ErrTypeMismatch, container.Kind())
		}
		return entryLocation{container.Dictionary(), p.Name}, nil
	}
	return nil, fmt.Errorf("%w: pointer kind %s", ErrBadAddress, p.Kind)
}

// mustResolve resolves p or faults the current instruction.
func (e *Executor) mustResolve(p *Pointer) location {
	loc, err := e.resolve(p)
	if err != nil {
		panic(e.fault(err))
	}
	return loc
}
