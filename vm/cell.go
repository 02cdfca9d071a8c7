package vm

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/nex/pkg/bytecode"
)

// Kind identifies which variant a Cell holds.
type Kind uint8

const (
	KindNone Kind = iota // Uninitialized marker
	KindBoolean
	KindNumber
	KindString
	KindBytes
	KindArray
	KindDictionary
	KindPointer
	KindObject
	KindVoidPointer
	KindFunction // Function value pushed by PUSHFP
	KindClass    // Class value pushed by PUSHCI
)

var kindNames = [...]string{
	KindNone:        "none",
	KindBoolean:     "boolean",
	KindNumber:      "number",
	KindString:      "string",
	KindBytes:       "bytes",
	KindArray:       "array",
	KindDictionary:  "dictionary",
	KindPointer:     "pointer",
	KindObject:      "object",
	KindVoidPointer: "voidpointer",
	KindFunction:    "function",
	KindClass:       "class",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Cell is the universal value container. The zero Cell is the
// uninitialized marker. Strings and bytes share the s field; composite,
// pointer and host payloads live in ref.
type Cell struct {
	kind Kind
	b    bool
	n    float64
	s    string
	ref  any
}

// Array is an ordered sequence of cells.
type Array struct {
	Elems []Cell
}

// Dictionary maps string keys to cells.
type Dictionary struct {
	Entries map[string]Cell
}

// Object is a record allocated by ALLOC. Field 0 conventionally holds the
// class of instances that take part in interface dispatch.
type Object struct {
	Fields []Cell
}

// FunctionRef names a function in a module's function table.
type FunctionRef struct {
	Module *Module
	Index  int
}

// ClassRef names a class in a module's class table.
type ClassRef struct {
	Module *Module
	Index  int
}

// None is the uninitialized marker.
var None = Cell{}

// Boolean makes a boolean cell.
func Boolean(b bool) Cell { return Cell{kind: KindBoolean, b: b} }

// Number makes a number cell.
func Number(n float64) Cell { return Cell{kind: KindNumber, n: n} }

// String makes a string cell.
func String(s string) Cell { return Cell{kind: KindString, s: s} }

// Bytes makes a bytes cell holding a copy of b.
func Bytes(b []byte) Cell { return Cell{kind: KindBytes, s: string(b)} }

// NewArray makes an array cell owning elems.
func NewArray(elems ...Cell) Cell {
	if elems == nil {
		elems = []Cell{}
	}
	return Cell{kind: KindArray, ref: &Array{Elems: elems}}
}

// NewDictionary makes a dictionary cell owning entries.
func NewDictionary(entries map[string]Cell) Cell {
	if entries == nil {
		entries = make(map[string]Cell)
	}
	return Cell{kind: KindDictionary, ref: &Dictionary{Entries: entries}}
}

// PointerCell makes a pointer cell.
func PointerCell(p *Pointer) Cell { return Cell{kind: KindPointer, ref: p} }

// ObjectCell makes an object cell.
func ObjectCell(o *Object) Cell { return Cell{kind: KindObject, ref: o} }

// VoidPointer wraps an opaque host handle. Handles compare by identity, so
// they should be pointers or other comparable values.
func VoidPointer(handle any) Cell { return Cell{kind: KindVoidPointer, ref: handle} }

// FunctionCell makes a function value.
func FunctionCell(m *Module, index int) Cell {
	return Cell{kind: KindFunction, ref: &FunctionRef{Module: m, Index: index}}
}

// ClassCell makes a class value.
func ClassCell(m *Module, index int) Cell {
	return Cell{kind: KindClass, ref: &ClassRef{Module: m, Index: index}}
}

// Kind returns the variant the cell holds.
func (c Cell) Kind() Kind { return c.kind }

// IsNone reports whether the cell is the uninitialized marker.
func (c Cell) IsNone() bool { return c.kind == KindNone }

// ---------------------------------------------------------------------------
// Accessors: the uninitialized marker reads as each kind's zero value
// ---------------------------------------------------------------------------

// Bool returns the boolean payload.
func (c Cell) Bool() bool { return c.b }

// Num returns the number payload.
func (c Cell) Num() float64 { return c.n }

// Str returns the string payload.
func (c Cell) Str() string { return c.s }

// ByteSlice returns a copy of the bytes payload.
func (c Cell) ByteSlice() []byte { return []byte(c.s) }

// Array returns the array payload, nil unless the cell is an array.
func (c Cell) Array() *Array {
	a, _ := c.ref.(*Array)
	return a
}

// Dictionary returns the dictionary payload, nil unless the cell is a
// dictionary.
func (c Cell) Dictionary() *Dictionary {
	d, _ := c.ref.(*Dictionary)
	return d
}

// Pointer returns the pointer payload.
func (c Cell) Pointer() *Pointer {
	p, _ := c.ref.(*Pointer)
	return p
}

// Object returns the object payload.
func (c Cell) Object() *Object {
	o, _ := c.ref.(*Object)
	return o
}

// Handle returns the void pointer payload.
func (c Cell) Handle() any {
	if c.kind != KindVoidPointer {
		return nil
	}
	return c.ref
}

// Function returns the function payload.
func (c Cell) Function() *FunctionRef {
	f, _ := c.ref.(*FunctionRef)
	return f
}

// Class returns the class payload.
func (c Cell) Class() *ClassRef {
	k, _ := c.ref.(*ClassRef)
	return k
}

// Len returns the element count of an array, the entry count of a
// dictionary, the field count of an object, the byte length of a string or
// bytes value and 0 otherwise.
func (c Cell) Len() int {
	switch c.kind {
	case KindArray:
		return len(c.Array().Elems)
	case KindDictionary:
		return len(c.Dictionary().Entries)
	case KindObject:
		return len(c.Object().Fields)
	case KindString, KindBytes:
		return len(c.s)
	}
	return 0
}

// Clone returns a copy that shares no mutable state with c. Pointers are
// descriptors and are copied as such; their targets are not.
func (c Cell) Clone() Cell {
	switch c.kind {
	case KindArray:
		src := c.Array().Elems
		elems := make([]Cell, len(src))
		for i, e := range src {
			elems[i] = e.Clone()
		}
		return Cell{kind: KindArray, ref: &Array{Elems: elems}}
	case KindDictionary:
		src := c.Dictionary().Entries
		entries := make(map[string]Cell, len(src))
		for k, v := range src {
			entries[k] = v.Clone()
		}
		return Cell{kind: KindDictionary, ref: &Dictionary{Entries: entries}}
	case KindObject:
		src := c.Object().Fields
		fields := make([]Cell, len(src))
		for i, f := range src {
			fields[i] = f.Clone()
		}
		return Cell{kind: KindObject, ref: &Object{Fields: fields}}
	}
	return c
}

// Keys returns the dictionary keys in sorted order.
func (d *Dictionary) Keys() []string {
	keys := make([]string, 0, len(d.Entries))
	for k := range d.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// String renders the cell the way the runtime library converts values to
// text: strings are unquoted at the top level and quoted inside composites.
func (c Cell) String() string {
	if c.kind == KindString {
		return c.s
	}
	return c.Literal()
}

// Literal renders the cell with strings quoted.
func (c Cell) Literal() string {
	switch c.kind {
	case KindNone:
		return "<none>"
	case KindBoolean:
		if c.b {
			return "TRUE"
		}
		return "FALSE"
	case KindNumber:
		return bytecode.FormatNumber(c.n)
	case KindString:
		return strconv.Quote(c.s)
	case KindBytes:
		return formatBytes([]byte(c.s))
	case KindArray:
		parts := make([]string, len(c.Array().Elems))
		for i, e := range c.Array().Elems {
			parts[i] = e.Literal()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDictionary:
		d := c.Dictionary()
		keys := d.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + d.Entries[k].Literal()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindPointer:
		return c.Pointer().String()
	case KindObject:
		parts := make([]string, len(c.Object().Fields))
		for i, f := range c.Object().Fields {
			parts[i] = f.Literal()
		}
		return "<object " + strings.Join(parts, ", ") + ">"
	case KindVoidPointer:
		return fmt.Sprintf("<voidpointer %v>", c.ref)
	case KindFunction:
		f := c.Function()
		return fmt.Sprintf("<function %s>", f.Module.Image.FunctionName(f.Index))
	case KindClass:
		k := c.Class()
		return fmt.Sprintf("<class %s>", k.Module.className(k.Index))
	}
	return fmt.Sprintf("<%s>", c.kind)
}

func formatBytes(b []byte) string {
	var sb strings.Builder
	sb.WriteString(`HEXBYTES "`)
	for i, x := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{x}))
	}
	sb.WriteByte('"')
	return sb.String()
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// Equal compares two cells. Strings, bytes and composites compare
// structurally; pointers and void pointers compare by identity.
func Equal(a, b Cell) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindBoolean:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString, KindBytes:
		return a.s == b.s
	case KindArray:
		x, y := a.Array().Elems, b.Array().Elems
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case KindDictionary:
		x, y := a.Dictionary().Entries, b.Dictionary().Entries
		if len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case KindObject:
		x, y := a.Object().Fields, b.Object().Fields
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case KindPointer:
		return a.Pointer().Same(b.Pointer())
	case KindVoidPointer:
		return handlesEqual(a.ref, b.ref)
	case KindFunction:
		f, g := a.Function(), b.Function()
		return f.Module == g.Module && f.Index == g.Index
	case KindClass:
		f, g := a.Class(), b.Class()
		return f.Module == g.Module && f.Index == g.Index
	}
	return false
}

func handlesEqual(a, b any) (eq bool) {
	defer func() {
		// Uncomparable handles are never identical.
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// compareBytes orders strings and bytes byte-wise.
func compareBytes(a, b string) int {
	return strings.Compare(a, b)
}
