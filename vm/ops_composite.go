package vm

// ---------------------------------------------------------------------------
// Composite construction, indexing and membership
// ---------------------------------------------------------------------------

// opConsA builds an array from the top n values. The top of the stack
// becomes element 0, so literals are pushed last element first.
func (e *Executor) opConsA() {
	n := e.readVarint()
	if n > len(e.stack) {
		panic(e.fault(ErrStackUnderflow))
	}
	top := len(e.stack) - 1
	elems := make([]Cell, n)
	for i := range elems {
		elems[i] = e.stack[top-i]
	}
	e.stack = e.stack[:len(e.stack)-n]
	e.push(NewArray(elems...))
}

// opConsD builds a dictionary from n key/value pairs, each pushed key
// first. Pairs are taken from the top of the stack down, so when a key
// repeats the pair pushed first wins.
func (e *Executor) opConsD() {
	n := e.readVarint()
	if 2*n > len(e.stack) {
		panic(e.fault(ErrStackUnderflow))
	}
	pairs := e.stack[len(e.stack)-2*n:]
	entries := make(map[string]Cell, n)
	for i := n - 1; i >= 0; i-- {
		key := pairs[2*i]
		if key.kind != KindString && key.kind != KindNone {
			e.fail(ErrTypeMismatch, "dictionary key is %s", key.kind)
		}
		entries[key.s] = pairs[2*i+1]
	}
	e.stack = e.stack[:len(e.stack)-2*n]
	e.push(NewDictionary(entries))
}

// opIndexArrayRef pushes a pointer to an element of the array (or field of
// the object) that the popped pointer addresses. For writing, a missing
// array is created and a short array is extended.
func (e *Executor) opIndexArrayRef(write bool) {
	index := e.popIndex()
	base := e.popPointer()
	loc := e.mustResolve(base)
	container := loc.get()

	switch container.kind {
	case KindNone:
		if !write {
			e.fail(ErrIndexOutOfRange, "index %d of empty array", index)
		}
		container = NewArray()
		loc.set(container)
		fallthrough
	case KindArray:
		a := container.Array()
		if index >= len(a.Elems) {
			if !write {
				e.fail(ErrIndexOutOfRange, "index %d of %d", index, len(a.Elems))
			}
			for len(a.Elems) <= index {
				a.Elems = append(a.Elems, None)
			}
		}
	case KindObject:
		o := container.Object()
		if index >= len(o.Fields) {
			e.fail(ErrIndexOutOfRange, "field %d of %d", index, len(o.Fields))
		}
	default:
		e.fail(ErrTypeMismatch, "cannot index %s", container.kind)
	}
	e.push(PointerCell(&Pointer{Kind: PointerElement, Base: base, Index: index}))
}

// opIndexArrayValue pushes an element of an array value. The lenient form
// pushes the uninitialized marker for an index past the end.
func (e *Executor) opIndexArrayValue(lenient bool) {
	index := e.popIndex()
	a := e.popArray()
	if index >= len(a.Elems) {
		if lenient {
			e.push(None)
			return
		}
		e.fail(ErrIndexOutOfRange, "index %d of %d", index, len(a.Elems))
	}
	e.push(a.Elems[index])
}

// opIndexDictRef pushes a pointer to a dictionary entry. Reading requires
// the key to exist; writing creates the dictionary if needed and the entry
// on store.
func (e *Executor) opIndexDictRef(write bool) {
	key := e.popString()
	base := e.popPointer()
	loc := e.mustResolve(base)
	container := loc.get()

	switch container.kind {
	case KindNone:
		if !write {
			e.fail(ErrKeyNotFound, "%q", key)
		}
		loc.set(NewDictionary(nil))
	case KindDictionary:
		if _, ok := container.Dictionary().Entries[key]; !ok && !write {
			e.fail(ErrKeyNotFound, "%q", key)
		}
	default:
		e.fail(ErrTypeMismatch, "cannot index %s by key", container.kind)
	}
	e.push(PointerCell(&Pointer{Kind: PointerEntry, Base: base, Name: key}))
}

func (e *Executor) opIndexDictValue() {
	key := e.popString()
	d := e.popDictionary()
	v, ok := d.Entries[key]
	if !ok {
		e.fail(ErrKeyNotFound, "%q", key)
	}
	e.push(v)
}

func (e *Executor) opInArray() {
	a := e.popArray()
	v := e.pop()
	for _, elem := range a.Elems {
		if Equal(elem, v) {
			e.push(Boolean(true))
			return
		}
	}
	e.push(Boolean(false))
}

func (e *Executor) opInDictionary() {
	d := e.popDictionary()
	key := e.popString()
	_, ok := d.Entries[key]
	e.push(Boolean(ok))
}
