package bytecode

import "fmt"

// Instruction is one decoded instruction of the code section.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []uint64
	Next     int
}

// DecodeInstruction decodes the instruction at offset. An unknown opcode
// decodes with no operands; a truncated operand is ErrUnexpectedEOF.
func (img *Image) DecodeInstruction(offset int) (Instruction, error) {
	if offset < 0 || offset >= len(img.Code) {
		return Instruction{}, fmt.Errorf("%w: offset %d outside code of length %d", ErrUnexpectedEOF, offset, len(img.Code))
	}
	in := Instruction{Offset: offset, Op: Opcode(img.Code[offset]), Next: offset + 1}
	if !in.Op.Valid() {
		return in, nil
	}
	for _, kind := range in.Op.Operands() {
		if kind == OperandByte {
			if in.Next >= len(img.Code) {
				return in, fmt.Errorf("%w: %s operand at %04X", ErrUnexpectedEOF, in.Op, in.Next)
			}
			in.Operands = append(in.Operands, uint64(img.Code[in.Next]))
			in.Next++
			continue
		}
		v, next, err := DecodeVarint(img.Code, in.Next)
		if err != nil {
			return in, fmt.Errorf("%w: %s operand at %04X", ErrUnexpectedEOF, in.Op, in.Next)
		}
		in.Operands = append(in.Operands, v)
		in.Next = next
	}
	return in, nil
}

// Instructions decodes the whole code section in order, stopping at the
// first truncated instruction.
func (img *Image) Instructions() ([]Instruction, error) {
	var out []Instruction
	for offset := 0; offset < len(img.Code); {
		in, err := img.DecodeInstruction(offset)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		offset = in.Next
	}
	return out, nil
}

// HostNames lists the builtin names reached by CALLP and the module.function
// names reached by CALLX, each once and in order of first use.
func (img *Image) HostNames() (builtins, extensions []string, err error) {
	ins, err := img.Instructions()
	seen := make(map[string]bool)
	add := func(list *[]string, name string) {
		if !seen[name] {
			seen[name] = true
			*list = append(*list, name)
		}
	}
	for _, in := range ins {
		switch in.Op {
		case OpCallP:
			add(&builtins, img.stringOrIndex(in.Operands[0]))
		case OpCallX:
			add(&extensions, img.stringOrIndex(in.Operands[0])+"."+img.stringOrIndex(in.Operands[1]))
		}
	}
	return builtins, extensions, err
}
