package vm

import "github.com/chazu/nex/pkg/bytecode"

// dispatch executes one decoded opcode. The instruction pointer already
// points past the opcode byte; handlers consume their own operands.
func (e *Executor) dispatch(op bytecode.Opcode) {
	switch op {
	// ============ Immediates and addresses ============
	case bytecode.OpPushB:
		e.push(Boolean(e.readByte() != 0))
	case bytecode.OpPushN:
		e.opPushN()
	case bytecode.OpPushS:
		e.push(String(e.readString()))
	case bytecode.OpPushY:
		e.push(Cell{kind: KindBytes, s: e.readString()})
	case bytecode.OpPushPG:
		e.opPushPG()
	case bytecode.OpPushPPG:
		e.opPushPPG()
	case bytecode.OpPushPMG:
		e.opPushPMG()
	case bytecode.OpPushPL:
		e.opPushPL()
	case bytecode.OpPushPOL:
		e.opPushPOL()
	case bytecode.OpPushI:
		e.push(Number(float64(e.readVarint())))

	// ============ Loads and stores ============
	case bytecode.OpLoadB:
		e.opLoad(KindBoolean)
	case bytecode.OpLoadN:
		e.opLoad(KindNumber)
	case bytecode.OpLoadS:
		e.opLoad(KindString)
	case bytecode.OpLoadY:
		e.opLoad(KindBytes)
	case bytecode.OpLoadA:
		e.opLoad(KindArray)
	case bytecode.OpLoadD:
		e.opLoad(KindDictionary)
	case bytecode.OpLoadP:
		e.opLoad(KindPointer)
	case bytecode.OpLoadJ:
		e.opLoad(KindObject)
	case bytecode.OpLoadV:
		e.opLoad(KindVoidPointer)
	case bytecode.OpStoreB:
		e.opStore(KindBoolean)
	case bytecode.OpStoreN:
		e.opStore(KindNumber)
	case bytecode.OpStoreS:
		e.opStore(KindString)
	case bytecode.OpStoreY:
		e.opStore(KindBytes)
	case bytecode.OpStoreA:
		e.opStore(KindArray)
	case bytecode.OpStoreD:
		e.opStore(KindDictionary)
	case bytecode.OpStoreP:
		e.opStore(KindPointer)
	case bytecode.OpStoreJ:
		e.opStore(KindObject)
	case bytecode.OpStoreV:
		e.opStore(KindVoidPointer)

	// ============ Arithmetic ============
	case bytecode.OpNegN:
		e.push(Number(-e.popNumber()))
	case bytecode.OpAddN, bytecode.OpSubN, bytecode.OpMulN, bytecode.OpDivN, bytecode.OpModN, bytecode.OpExpN:
		e.opArith(op)

	// ============ Comparison ============
	case bytecode.OpEqB, bytecode.OpNeB:
		b := e.popBool()
		a := e.popBool()
		e.push(Boolean((a == b) == (op == bytecode.OpEqB)))
	case bytecode.OpEqN, bytecode.OpNeN, bytecode.OpLtN, bytecode.OpGtN, bytecode.OpLeN, bytecode.OpGeN:
		e.opCompareNumber(op)
	case bytecode.OpEqS, bytecode.OpNeS, bytecode.OpLtS, bytecode.OpGtS, bytecode.OpLeS, bytecode.OpGeS:
		b := e.popString()
		a := e.popString()
		e.push(Boolean(ordered(op-bytecode.OpEqS, compareBytes(a, b))))
	case bytecode.OpEqY, bytecode.OpNeY, bytecode.OpLtY, bytecode.OpGtY, bytecode.OpLeY, bytecode.OpGeY:
		b := e.popBytes()
		a := e.popBytes()
		e.push(Boolean(ordered(op-bytecode.OpEqY, compareBytes(a, b))))
	case bytecode.OpEqA, bytecode.OpNeA:
		e.opEqual(KindArray, op == bytecode.OpEqA)
	case bytecode.OpEqD, bytecode.OpNeD:
		e.opEqual(KindDictionary, op == bytecode.OpEqD)
	case bytecode.OpEqP, bytecode.OpNeP:
		e.opEqual(KindPointer, op == bytecode.OpEqP)
	case bytecode.OpEqV, bytecode.OpNeV:
		e.opEqual(KindVoidPointer, op == bytecode.OpEqV)

	// ============ Logic ============
	case bytecode.OpAndB:
		b := e.popBool()
		a := e.popBool()
		e.push(Boolean(a && b))
	case bytecode.OpOrB:
		b := e.popBool()
		a := e.popBool()
		e.push(Boolean(a || b))
	case bytecode.OpNotB:
		e.push(Boolean(!e.popBool()))

	// ============ Composites ============
	case bytecode.OpIndexAR:
		e.opIndexArrayRef(false)
	case bytecode.OpIndexAW:
		e.opIndexArrayRef(true)
	case bytecode.OpIndexAV:
		e.opIndexArrayValue(false)
	case bytecode.OpIndexAN:
		e.opIndexArrayValue(true)
	case bytecode.OpIndexDR:
		e.opIndexDictRef(false)
	case bytecode.OpIndexDW:
		e.opIndexDictRef(true)
	case bytecode.OpIndexDV:
		e.opIndexDictValue()
	case bytecode.OpInA:
		e.opInArray()
	case bytecode.OpInD:
		e.opInDictionary()
	case bytecode.OpConsA:
		e.opConsA()
	case bytecode.OpConsD:
		e.opConsD()

	// ============ Calls ============
	case bytecode.OpCallP:
		e.opCallP()
	case bytecode.OpCallF:
		e.opCallF()
	case bytecode.OpCallMF:
		e.opCallMF()
	case bytecode.OpCallI:
		e.opCallI()
	case bytecode.OpCallX:
		e.opCallX()
	case bytecode.OpCallV:
		e.opCallV()
	case bytecode.OpPushFP:
		e.push(FunctionCell(e.module, e.readVarint()))
	case bytecode.OpPushCI:
		e.opPushCI()
	case bytecode.OpAlloc:
		e.opAlloc()
	case bytecode.OpRet:
		e.opRet()

	// ============ Control flow ============
	case bytecode.OpJump:
		e.jump(e.readVarint())
	case bytecode.OpJF:
		target := e.readVarint()
		if !e.popBool() {
			e.jump(target)
		}
	case bytecode.OpJT:
		target := e.readVarint()
		if e.popBool() {
			e.jump(target)
		}
	case bytecode.OpJumpTbl:
		e.opJumpTable()
	case bytecode.OpExcept:
		name := e.readString()
		info := e.pop()
		e.raise(name, info)

	// ============ Stack ============
	case bytecode.OpDup:
		e.push(e.peek(0))
	case bytecode.OpDupX1:
		a := e.pop()
		b := e.pop()
		e.push(a)
		e.push(b)
		e.push(a)
	case bytecode.OpDrop:
		e.pop()
	case bytecode.OpDropN:
		e.opDropN()
	case bytecode.OpSwap:
		a := e.pop()
		b := e.pop()
		e.push(a)
		e.push(b)
	case bytecode.OpPushNil:
		e.push(PointerCell(NilPointer))
	case bytecode.OpResetC:
		e.mustResolve(e.popPointer()).set(None)
	case bytecode.OpPushPEG:
		e.opPushPEG()

	default:
		e.fail(ErrInvalidOpcode, "0x%02X", byte(op))
	}
}

// jump moves to target in the current module's code. Landing exactly on
// the end of code is allowed and ends top-level execution.
func (e *Executor) jump(target int) {
	if target > len(e.module.Image.Code) {
		e.fail(ErrBadAddress, "jump target %04X beyond code length %d", target, len(e.module.Image.Code))
	}
	e.ip = target
}

func (e *Executor) opJumpTable() {
	n := e.readVarint()
	selector := e.popNumber()
	end := e.ip + n*bytecode.JumpTableEntrySize
	if end > len(e.module.Image.Code) {
		e.fail(ErrTruncatedOperand, "jump table of %d entries", n)
	}
	if i := int(selector); float64(i) == selector && i >= 0 && i < n {
		e.ip += i * bytecode.JumpTableEntrySize
		return
	}
	e.ip = end
}

// opDropN removes the element depth positions below the top.
func (e *Executor) opDropN() {
	depth := e.readVarint()
	if depth >= len(e.stack) {
		panic(e.fault(ErrStackUnderflow))
	}
	i := len(e.stack) - 1 - depth
	e.stack = append(e.stack[:i], e.stack[i+1:]...)
}
