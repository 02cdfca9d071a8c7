package bytecode

import (
	"crypto/sha256"
	"fmt"
)

// jumpTargetWidth is the padded width of jump operands emitted by EmitJump,
// wide enough for any code offset below 2^35.
const jumpTargetWidth = 5

// Builder assembles code and tables into an object file. Strings are
// interned, so adding the same text twice yields the same index.
type Builder struct {
	strings    []string
	stringIdx  map[string]uint64
	types      []TypeEntry
	functions  []Function
	exceptions []ExceptionHandler
	classes    []Class
	code       []byte
	globalSize int
	hash       *[HashSize]byte

	// Version overrides the header version. Zero writes FormatVersion.
	Version uint64
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		stringIdx: make(map[string]uint64),
		code:      make([]byte, 0, 64),
	}
}

// String interns s and returns its string table index.
func (b *Builder) String(s string) uint64 {
	if idx, ok := b.stringIdx[s]; ok {
		return idx
	}
	idx := uint64(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIdx[s] = idx
	return idx
}

// SetGlobalSize sets the number of global cells.
func (b *Builder) SetGlobalSize(n int) {
	b.globalSize = n
}

// SetSourceHash fixes the header hash. Without it Bytes hashes the code.
func (b *Builder) SetSourceHash(h [HashSize]byte) {
	b.hash = &h
}

// AddType appends a type table entry.
func (b *Builder) AddType(name, descriptor string) {
	b.types = append(b.types, TypeEntry{Name: b.String(name), Descriptor: b.String(descriptor)})
}

// AddFunction appends a function table entry and returns its index.
func (b *Builder) AddFunction(name string, nest, params, locals, entry int) int {
	b.functions = append(b.functions, Function{
		Name:   b.String(name),
		Nest:   nest,
		Params: params,
		Locals: locals,
		Entry:  entry,
	})
	return len(b.functions) - 1
}

// SetFunctionEntry moves the entry point of a previously added function.
func (b *Builder) SetFunctionEntry(fn, entry int) {
	b.functions[fn].Entry = entry
}

// AddException appends an exception handler covering [start, end).
func (b *Builder) AddException(start, end int, name string, handler, stackDepth int) {
	b.exceptions = append(b.exceptions, ExceptionHandler{
		Start:      start,
		End:        end,
		Name:       b.String(name),
		Handler:    handler,
		StackDepth: stackDepth,
	})
}

// AddClass appends a class whose interfaces list method function indices.
func (b *Builder) AddClass(name string, interfaces ...[]int) int {
	b.classes = append(b.classes, Class{Name: b.String(name), Interfaces: interfaces})
	return len(b.classes) - 1
}

// Offset returns the offset the next instruction will be written at.
func (b *Builder) Offset() int {
	return len(b.code)
}

// Emit appends an instruction. Operands are written according to the
// opcode's layout; byte operands are truncated to one byte.
func (b *Builder) Emit(op Opcode, operands ...uint64) int {
	layout := op.Operands()
	if len(operands) != len(layout) {
		panic(fmt.Sprintf("bytecode: %s takes %d operands, got %d", op, len(layout), len(operands)))
	}
	offset := len(b.code)
	b.code = append(b.code, byte(op))
	for i, kind := range layout {
		if kind == OperandByte {
			b.code = append(b.code, byte(operands[i]))
		} else {
			b.code = AppendVarint(b.code, operands[i])
		}
	}
	return offset
}

// EmitString appends an instruction whose operands are all string table
// indices, interning the given texts.
func (b *Builder) EmitString(op Opcode, texts ...string) int {
	operands := make([]uint64, len(texts))
	for i, s := range texts {
		operands[i] = b.String(s)
	}
	return b.Emit(op, operands...)
}

// EmitNumber appends PUSHN for the decimal text of n.
func (b *Builder) EmitNumber(n float64) int {
	return b.EmitString(OpPushN, FormatNumber(n))
}

// EmitRaw appends raw bytes to the code, for malformed-code tests.
func (b *Builder) EmitRaw(raw ...byte) {
	b.code = append(b.code, raw...)
}

// EmitJump appends a jump with a placeholder target and returns the offset
// of the operand, to be fixed later with PatchJump.
func (b *Builder) EmitJump(op Opcode) int {
	if op != OpJump && op != OpJF && op != OpJT {
		panic(fmt.Sprintf("bytecode: %s is not a jump", op))
	}
	b.code = append(b.code, byte(op))
	patch := len(b.code)
	b.code = AppendVarintFixed(b.code, 0, jumpTargetWidth)
	return patch
}

// PatchJump points a placeholder created by EmitJump at target.
func (b *Builder) PatchJump(patch, target int) {
	fixed := AppendVarintFixed(nil, uint64(target), jumpTargetWidth)
	copy(b.code[patch:], fixed)
}

// PatchJumpHere points a placeholder at the current offset.
func (b *Builder) PatchJumpHere(patch int) {
	b.PatchJump(patch, len(b.code))
}

// EmitJumpTable appends JUMPTBL with one JUMP entry per target. It returns
// the operand offsets of the entries so targets can be patched later.
func (b *Builder) EmitJumpTable(targets ...int) []int {
	b.Emit(OpJumpTbl, uint64(len(targets)))
	patches := make([]int, len(targets))
	for i, t := range targets {
		b.code = append(b.code, byte(OpJump))
		patches[i] = len(b.code)
		b.code = AppendVarintFixed(b.code, uint64(t), jumpTableTargetWidth)
	}
	return patches
}

// Bytes serializes the object file.
func (b *Builder) Bytes() []byte {
	buf := make([]byte, 0, 64+len(b.code))
	buf = append(buf, Signature...)

	version := b.Version
	if version == 0 {
		version = FormatVersion
	}
	buf = AppendVarint(buf, version)

	if b.hash != nil {
		buf = append(buf, b.hash[:]...)
	} else {
		sum := sha256.Sum256(b.code)
		buf = append(buf, sum[:]...)
	}

	buf = AppendVarint(buf, uint64(b.globalSize))

	var table []byte
	for _, s := range b.strings {
		table = AppendVarint(table, uint64(len(s)))
		table = append(table, s...)
	}
	buf = AppendVarint(buf, uint64(len(table)))
	buf = append(buf, table...)

	buf = AppendVarint(buf, uint64(len(b.types)))
	for _, t := range b.types {
		buf = AppendVarint(buf, t.Name)
		buf = AppendVarint(buf, t.Descriptor)
	}

	for range reservedSections {
		buf = AppendVarint(buf, 0)
	}

	buf = AppendVarint(buf, uint64(len(b.functions)))
	for _, f := range b.functions {
		buf = AppendVarint(buf, f.Name)
		buf = AppendVarint(buf, uint64(f.Nest))
		buf = AppendVarint(buf, uint64(f.Params))
		buf = AppendVarint(buf, uint64(f.Locals))
		buf = AppendVarint(buf, uint64(f.Entry))
	}

	buf = AppendVarint(buf, uint64(len(b.exceptions)))
	for _, e := range b.exceptions {
		buf = AppendVarint(buf, uint64(e.Start))
		buf = AppendVarint(buf, uint64(e.End))
		buf = AppendVarint(buf, e.Name)
		buf = AppendVarint(buf, uint64(e.Handler))
		buf = AppendVarint(buf, uint64(e.StackDepth))
	}

	buf = AppendVarint(buf, uint64(len(b.classes)))
	for _, c := range b.classes {
		buf = AppendVarint(buf, c.Name)
		buf = AppendVarint(buf, uint64(len(c.Interfaces)))
		for _, methods := range c.Interfaces {
			buf = AppendVarint(buf, uint64(len(methods)))
			for _, m := range methods {
				buf = AppendVarint(buf, uint64(m))
			}
		}
	}

	return append(buf, b.code...)
}

// Image serializes the builder and loads the result, accepting every
// optional table the builder wrote.
func (b *Builder) Image() (*Image, error) {
	return Load(b.Bytes(), WithExceptionTable(), WithClassTable())
}
