package bytecode

import "fmt"

// Opcode is a single-byte instruction. Values follow the declaration order
// used by the neon compiler, so they must never be reordered.
type Opcode byte

const (
	// ========================================================================
	// Immediates and addresses
	// ========================================================================

	OpPushB   Opcode = iota // Push boolean: PUSHB <byte>
	OpPushN                 // Push number parsed from string table: PUSHN <str>
	OpPushS                 // Push string: PUSHS <str>
	OpPushY                 // Push bytes: PUSHY <str>
	OpPushPG                // Push pointer to global: PUSHPG <slot>
	OpPushPPG               // Push pointer to predefined global: PUSHPPG <name>
	OpPushPMG               // Push pointer to module global: PUSHPMG <module> <name>
	OpPushPL                // Push pointer to local: PUSHPL <slot>
	OpPushPOL               // Push pointer to outer local: PUSHPOL <hops> <slot>
	OpPushI                 // Push integer immediate: PUSHI <int>

	// ========================================================================
	// Loads and stores through pointers
	// ========================================================================

	OpLoadB
	OpLoadN
	OpLoadS
	OpLoadY
	OpLoadA
	OpLoadD
	OpLoadP
	OpLoadJ
	OpLoadV
	OpStoreB
	OpStoreN
	OpStoreS
	OpStoreY
	OpStoreA
	OpStoreD
	OpStoreP
	OpStoreJ
	OpStoreV

	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpNegN
	OpAddN
	OpSubN
	OpMulN
	OpDivN
	OpModN
	OpExpN

	// ========================================================================
	// Comparison
	// ========================================================================

	OpEqB
	OpNeB
	OpEqN
	OpNeN
	OpLtN
	OpGtN
	OpLeN
	OpGeN
	OpEqS
	OpNeS
	OpLtS
	OpGtS
	OpLeS
	OpGeS
	OpEqY
	OpNeY
	OpLtY
	OpGtY
	OpLeY
	OpGeY
	OpEqA
	OpNeA
	OpEqD
	OpNeD
	OpEqP
	OpNeP
	OpEqV
	OpNeV

	// ========================================================================
	// Logic
	// ========================================================================

	OpAndB
	OpOrB
	OpNotB

	// ========================================================================
	// Composite indexing and membership
	// ========================================================================

	OpIndexAR // Array element reference for reading (range checked)
	OpIndexAW // Array element reference for writing (extends the array)
	OpIndexAV // Array element value (range checked)
	OpIndexAN // Array element value, uninitialized when out of range
	OpIndexDR // Dictionary entry reference for reading (key must exist)
	OpIndexDW // Dictionary entry reference for writing
	OpIndexDV // Dictionary entry value (key must exist)
	OpInA     // Value in array
	OpInD     // Key in dictionary

	// ========================================================================
	// Calls and control flow
	// ========================================================================

	OpCallP   // Call predefined: CALLP <name>
	OpCallF   // Call function: CALLF <function>
	OpCallMF  // Call module function: CALLMF <module> <name>
	OpCallI   // Call through function value on the stack
	OpJump    // JUMP <target>
	OpJF      // Jump if false: JF <target>
	OpJT      // Jump if true: JT <target>
	OpDup     // Duplicate top
	OpDupX1   // x y -> y x y
	OpDrop    // Discard top
	OpRet     // Return from function
	OpConsA   // Build array: CONSA <count>
	OpConsD   // Build dictionary: CONSD <count>
	OpExcept  // Raise exception: EXCEPT <name>
	OpAlloc   // Allocate object: ALLOC <fields>
	OpPushNil // Push nil pointer
	OpResetC  // Reset the cell a pointer addresses
	OpPushPEG // Push pointer to external global: PUSHPEG <name>
	OpJumpTbl // Jump table: JUMPTBL <count> followed by <count> JUMP entries
	OpCallX   // Call extension: CALLX <module> <name> <outs>
	OpSwap    // Swap top two
	OpDropN   // Drop the element <depth> below the top: DROPN <depth>
	OpPushFP  // Push function value: PUSHFP <function>
	OpCallV   // Call interface method: CALLV <slot>
	OpPushCI  // Push class: PUSHCI <name>

	opcodeLimit
)

// OperandKind describes how one operand is encoded and what it refers to.
type OperandKind uint8

const (
	OperandByte     OperandKind = iota // One raw byte
	OperandInt                         // Varint integer
	OperandString                      // Varint string table index
	OperandTarget                      // Varint absolute code offset
	OperandFunction                    // Varint function table index
)

// JumpTableEntrySize is the width of each JUMP entry following JUMPTBL:
// the opcode plus a fixed five byte target.
const JumpTableEntrySize = 6

// jumpTableTargetWidth is the padded varint width of a jump table target.
const jumpTableTargetWidth = JumpTableEntrySize - 1

// OpcodeInfo provides metadata about each opcode for the disassembler,
// the builder and tracing.
type OpcodeInfo struct {
	Name      string        // Mnemonic
	StackPop  int           // Values popped (-1 = depends on operands)
	StackPush int           // Values pushed (-1 = depends on operands)
	Operands  []OperandKind // Operand layout following the opcode byte
}

var (
	noOperands  []OperandKind
	oneString   = []OperandKind{OperandString}
	oneInt      = []OperandKind{OperandInt}
	oneTarget   = []OperandKind{OperandTarget}
	twoStrings  = []OperandKind{OperandString, OperandString}
	oneFunction = []OperandKind{OperandFunction}
)

// opcodeInfoTable is indexed by opcode value.
var opcodeInfoTable = [opcodeLimit]OpcodeInfo{
	OpPushB:   {"PUSHB", 0, 1, []OperandKind{OperandByte}},
	OpPushN:   {"PUSHN", 0, 1, oneString},
	OpPushS:   {"PUSHS", 0, 1, oneString},
	OpPushY:   {"PUSHY", 0, 1, oneString},
	OpPushPG:  {"PUSHPG", 0, 1, oneInt},
	OpPushPPG: {"PUSHPPG", 0, 1, oneString},
	OpPushPMG: {"PUSHPMG", 0, 1, twoStrings},
	OpPushPL:  {"PUSHPL", 0, 1, oneInt},
	OpPushPOL: {"PUSHPOL", 0, 1, []OperandKind{OperandInt, OperandInt}},
	OpPushI:   {"PUSHI", 0, 1, oneInt},

	OpLoadB:  {"LOADB", 1, 1, noOperands},
	OpLoadN:  {"LOADN", 1, 1, noOperands},
	OpLoadS:  {"LOADS", 1, 1, noOperands},
	OpLoadY:  {"LOADY", 1, 1, noOperands},
	OpLoadA:  {"LOADA", 1, 1, noOperands},
	OpLoadD:  {"LOADD", 1, 1, noOperands},
	OpLoadP:  {"LOADP", 1, 1, noOperands},
	OpLoadJ:  {"LOADJ", 1, 1, noOperands},
	OpLoadV:  {"LOADV", 1, 1, noOperands},
	OpStoreB: {"STOREB", 2, 0, noOperands},
	OpStoreN: {"STOREN", 2, 0, noOperands},
	OpStoreS: {"STORES", 2, 0, noOperands},
	OpStoreY: {"STOREY", 2, 0, noOperands},
	OpStoreA: {"STOREA", 2, 0, noOperands},
	OpStoreD: {"STORED", 2, 0, noOperands},
	OpStoreP: {"STOREP", 2, 0, noOperands},
	OpStoreJ: {"STOREJ", 2, 0, noOperands},
	OpStoreV: {"STOREV", 2, 0, noOperands},

	OpNegN: {"NEGN", 1, 1, noOperands},
	OpAddN: {"ADDN", 2, 1, noOperands},
	OpSubN: {"SUBN", 2, 1, noOperands},
	OpMulN: {"MULN", 2, 1, noOperands},
	OpDivN: {"DIVN", 2, 1, noOperands},
	OpModN: {"MODN", 2, 1, noOperands},
	OpExpN: {"EXPN", 2, 1, noOperands},

	OpEqB: {"EQB", 2, 1, noOperands},
	OpNeB: {"NEB", 2, 1, noOperands},
	OpEqN: {"EQN", 2, 1, noOperands},
	OpNeN: {"NEN", 2, 1, noOperands},
	OpLtN: {"LTN", 2, 1, noOperands},
	OpGtN: {"GTN", 2, 1, noOperands},
	OpLeN: {"LEN", 2, 1, noOperands},
	OpGeN: {"GEN", 2, 1, noOperands},
	OpEqS: {"EQS", 2, 1, noOperands},
	OpNeS: {"NES", 2, 1, noOperands},
	OpLtS: {"LTS", 2, 1, noOperands},
	OpGtS: {"GTS", 2, 1, noOperands},
	OpLeS: {"LES", 2, 1, noOperands},
	OpGeS: {"GES", 2, 1, noOperands},
	OpEqY: {"EQY", 2, 1, noOperands},
	OpNeY: {"NEY", 2, 1, noOperands},
	OpLtY: {"LTY", 2, 1, noOperands},
	OpGtY: {"GTY", 2, 1, noOperands},
	OpLeY: {"LEY", 2, 1, noOperands},
	OpGeY: {"GEY", 2, 1, noOperands},
	OpEqA: {"EQA", 2, 1, noOperands},
	OpNeA: {"NEA", 2, 1, noOperands},
	OpEqD: {"EQD", 2, 1, noOperands},
	OpNeD: {"NED", 2, 1, noOperands},
	OpEqP: {"EQP", 2, 1, noOperands},
	OpNeP: {"NEP", 2, 1, noOperands},
	OpEqV: {"EQV", 2, 1, noOperands},
	OpNeV: {"NEV", 2, 1, noOperands},

	OpAndB: {"ANDB", 2, 1, noOperands},
	OpOrB:  {"ORB", 2, 1, noOperands},
	OpNotB: {"NOTB", 1, 1, noOperands},

	OpIndexAR: {"INDEXAR", 2, 1, noOperands},
	OpIndexAW: {"INDEXAW", 2, 1, noOperands},
	OpIndexAV: {"INDEXAV", 2, 1, noOperands},
	OpIndexAN: {"INDEXAN", 2, 1, noOperands},
	OpIndexDR: {"INDEXDR", 2, 1, noOperands},
	OpIndexDW: {"INDEXDW", 2, 1, noOperands},
	OpIndexDV: {"INDEXDV", 2, 1, noOperands},
	OpInA:     {"INA", 2, 1, noOperands},
	OpInD:     {"IND", 2, 1, noOperands},

	OpCallP:   {"CALLP", -1, -1, oneString},
	OpCallF:   {"CALLF", -1, -1, oneFunction},
	OpCallMF:  {"CALLMF", -1, -1, twoStrings},
	OpCallI:   {"CALLI", -1, -1, noOperands},
	OpJump:    {"JUMP", 0, 0, oneTarget},
	OpJF:      {"JF", 1, 0, oneTarget},
	OpJT:      {"JT", 1, 0, oneTarget},
	OpDup:     {"DUP", 1, 2, noOperands},
	OpDupX1:   {"DUPX1", 2, 3, noOperands},
	OpDrop:    {"DROP", 1, 0, noOperands},
	OpRet:     {"RET", 0, 0, noOperands},
	OpConsA:   {"CONSA", -1, 1, oneInt},
	OpConsD:   {"CONSD", -1, 1, oneInt},
	OpExcept:  {"EXCEPT", 1, 0, oneString},
	OpAlloc:   {"ALLOC", 0, 1, oneInt},
	OpPushNil: {"PUSHNIL", 0, 1, noOperands},
	OpResetC:  {"RESETC", 1, 0, noOperands},
	OpPushPEG: {"PUSHPEG", 0, 1, oneString},
	OpJumpTbl: {"JUMPTBL", 1, 0, oneInt},
	OpCallX:   {"CALLX", 1, -1, []OperandKind{OperandString, OperandString, OperandInt}},
	OpSwap:    {"SWAP", 2, 2, noOperands},
	OpDropN:   {"DROPN", -1, -1, oneInt},
	OpPushFP:  {"PUSHFP", 0, 1, oneFunction},
	OpCallV:   {"CALLV", -1, -1, oneInt},
	OpPushCI:  {"PUSHCI", 0, 1, oneString},
}

// GetOpcodeInfo returns metadata for an opcode.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a defined instruction.
func (op Opcode) Valid() bool {
	return op < opcodeLimit
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operands returns the operand layout of an opcode.
func (op Opcode) Operands() []OperandKind {
	return GetOpcodeInfo(op).Operands
}

// IsJump returns true if the opcode transfers control to a code offset.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJF || op == OpJT || op == OpJumpTbl
}

// IsCall returns true if the opcode pushes a frame or calls into the host.
func (op Opcode) IsCall() bool {
	switch op {
	case OpCallP, OpCallF, OpCallMF, OpCallI, OpCallX, OpCallV:
		return true
	}
	return false
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, opcodeLimit)
	for op := Opcode(0); op < opcodeLimit; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return int(opcodeLimit)
}

// LookupOpcode finds an opcode by mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	for op := Opcode(0); op < opcodeLimit; op++ {
		if opcodeInfoTable[op].Name == name {
			return op, true
		}
	}
	return 0, false
}
