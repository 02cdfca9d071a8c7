package vm

import (
	"math"

	"github.com/chazu/nex/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Operand stack helpers used by instructions. They fault the current
// instruction instead of returning errors.
// ---------------------------------------------------------------------------

func (e *Executor) push(c Cell) {
	e.stack = append(e.stack, c)
}

func (e *Executor) pop() Cell {
	if len(e.stack) == 0 {
		panic(e.fault(ErrStackUnderflow))
	}
	c := e.stack[len(e.stack)-1]
	e.stack[len(e.stack)-1] = None
	e.stack = e.stack[:len(e.stack)-1]
	return c
}

func (e *Executor) peek(depth int) Cell {
	if depth >= len(e.stack) {
		panic(e.fault(ErrStackUnderflow))
	}
	return e.stack[len(e.stack)-1-depth]
}

// popKind pops a cell of kind k. The uninitialized marker is accepted and
// reads as the zero value of k.
func (e *Executor) popKind(k Kind) Cell {
	c := e.pop()
	if c.kind != k && c.kind != KindNone {
		e.fail(ErrTypeMismatch, "expected %s, got %s", k, c.kind)
	}
	return c
}

func (e *Executor) popBool() bool      { return e.popKind(KindBoolean).b }
func (e *Executor) popNumber() float64 { return e.popKind(KindNumber).n }
func (e *Executor) popString() string  { return e.popKind(KindString).s }
func (e *Executor) popBytes() string   { return e.popKind(KindBytes).s }

func (e *Executor) popArray() *Array {
	c := e.popKind(KindArray)
	if c.IsNone() {
		return &Array{}
	}
	return c.Array()
}

func (e *Executor) popDictionary() *Dictionary {
	c := e.popKind(KindDictionary)
	if c.IsNone() {
		return &Dictionary{Entries: map[string]Cell{}}
	}
	return c.Dictionary()
}

func (e *Executor) popPointer() *Pointer {
	c := e.popKind(KindPointer)
	if c.IsNone() {
		return NilPointer
	}
	return c.Pointer()
}

// popIndex pops a number that must be a non-negative integer.
func (e *Executor) popIndex() int {
	n := e.popNumber()
	if n != math.Trunc(n) || n < 0 || n > math.MaxInt32 {
		e.fail(ErrInvalidIndex, "%s", bytecode.FormatNumber(n))
	}
	return int(n)
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

func (e *Executor) readByte() byte {
	code := e.module.Image.Code
	if e.ip >= len(code) {
		panic(e.fault(ErrTruncatedOperand))
	}
	b := code[e.ip]
	e.ip++
	return b
}

func (e *Executor) readVarint() int {
	v, next, err := bytecode.DecodeVarint(e.module.Image.Code, e.ip)
	if err != nil {
		e.fail(ErrTruncatedOperand, "%v", err)
	}
	if v > math.MaxInt32 {
		e.fail(ErrBadAddress, "operand %d too large", v)
	}
	e.ip = next
	return int(v)
}

// readString decodes a string table index operand and returns the entry.
func (e *Executor) readString() string {
	i := e.readVarint()
	s, err := e.module.Image.String(uint64(i))
	if err != nil {
		e.fail(ErrBadAddress, "%v", err)
	}
	return s
}
