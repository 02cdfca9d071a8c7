package vm

import (
	"math"

	"github.com/chazu/nex/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Arithmetic and comparison
// ---------------------------------------------------------------------------

func (e *Executor) opArith(op bytecode.Opcode) {
	b := e.popNumber()
	a := e.popNumber()
	var r float64
	switch op {
	case bytecode.OpAddN:
		r = a + b
	case bytecode.OpSubN:
		r = a - b
	case bytecode.OpMulN:
		r = a * b
	case bytecode.OpDivN:
		if b == 0 {
			e.raise(ExceptionDivideByZero, None)
		}
		r = a / b
	case bytecode.OpModN:
		if b == 0 {
			e.raise(ExceptionDivideByZero, None)
		}
		r = math.Mod(a, b)
	case bytecode.OpExpN:
		r = math.Pow(a, b)
	}
	e.push(Number(r))
}

func (e *Executor) opCompareNumber(op bytecode.Opcode) {
	b := e.popNumber()
	a := e.popNumber()
	cmp := 0
	switch {
	case a < b:
		cmp = -1
	case a > b:
		cmp = 1
	case a != b:
		// NaN is unordered: only NEN holds.
		e.push(Boolean(op == bytecode.OpNeN))
		return
	}
	e.push(Boolean(ordered(op-bytecode.OpEqN, cmp)))
}

// ordered evaluates a comparison given its offset within a family laid out
// as EQ, NE, LT, GT, LE, GE.
func ordered(rel bytecode.Opcode, cmp int) bool {
	switch rel {
	case 0:
		return cmp == 0
	case 1:
		return cmp != 0
	case 2:
		return cmp < 0
	case 3:
		return cmp > 0
	case 4:
		return cmp <= 0
	case 5:
		return cmp >= 0
	}
	return false
}

// opEqual compares two cells of kind k by value, or by identity for
// pointers and void pointers.
func (e *Executor) opEqual(k Kind, eq bool) {
	b := e.popKind(k)
	a := e.popKind(k)
	if a.IsNone() && k == KindPointer {
		a = PointerCell(NilPointer)
	}
	if b.IsNone() && k == KindPointer {
		b = PointerCell(NilPointer)
	}
	e.push(Boolean(Equal(a, b) == eq))
}
