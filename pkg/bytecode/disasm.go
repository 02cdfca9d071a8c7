package bytecode

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the image.
func (img *Image) Disassemble() string {
	return img.DisassembleWithName("")
}

// DisassembleWithName returns a listing with a name header.
func (img *Image) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; Neon object v%d\n", img.Version))
	sb.WriteString(fmt.Sprintf("; Source hash: %s\n", hex.EncodeToString(img.SourceHash[:])))
	sb.WriteString(fmt.Sprintf("; Globals: %d slots\n", img.GlobalSize))
	sb.WriteString("\n")

	if len(img.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range img.Strings {
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, abbreviate(s)))
		}
		sb.WriteString("\n")
	}

	if len(img.Types) > 0 {
		sb.WriteString("; Types:\n")
		for i, t := range img.Types {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s %s\n", i, img.stringOrIndex(t.Name), img.stringOrIndex(t.Descriptor)))
		}
		sb.WriteString("\n")
	}

	if len(img.Functions) > 0 {
		sb.WriteString("; Functions:\n")
		for i, f := range img.Functions {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s nest=%d params=%d locals=%d entry=%04X\n",
				i, img.stringOrIndex(f.Name), f.Nest, f.Params, f.Locals, f.Entry))
		}
		sb.WriteString("\n")
	}

	if len(img.Exceptions) > 0 {
		sb.WriteString("; Exception handlers:\n")
		for _, e := range img.Exceptions {
			sb.WriteString(fmt.Sprintf(";   %04X-%04X %s -> %04X depth=%d\n",
				e.Start, e.End, img.stringOrIndex(e.Name), e.Handler, e.StackDepth))
		}
		sb.WriteString("\n")
	}

	if len(img.Classes) > 0 {
		sb.WriteString("; Classes:\n")
		for i, c := range img.Classes {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s", i, img.stringOrIndex(c.Name)))
			for j, methods := range c.Interfaces {
				names := make([]string, len(methods))
				for k, m := range methods {
					names[k] = img.FunctionName(m)
				}
				sb.WriteString(fmt.Sprintf(" iface%d(%s)", j, strings.Join(names, ", ")))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	entries := make(map[int]string, len(img.Functions))
	for i, f := range img.Functions {
		entries[f.Entry] = img.FunctionName(i)
	}
	offset := 0
	for offset < len(img.Code) {
		if fn, ok := entries[offset]; ok {
			sb.WriteString(fmt.Sprintf("; %s:\n", fn))
		}
		line, next := img.disassembleInstruction(offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		offset = next
	}

	return sb.String()
}

// DisassembleInstruction renders the instruction at offset and returns the
// offset of the next one.
func (img *Image) DisassembleInstruction(offset int) (string, int) {
	return img.disassembleInstruction(offset)
}

func (img *Image) disassembleInstruction(offset int) (string, int) {
	if offset >= len(img.Code) {
		return "<end of code>", offset
	}
	in, err := img.DecodeInstruction(offset)
	if err != nil {
		return fmt.Sprintf("%-10s <truncated>", in.Op), len(img.Code)
	}
	if !in.Op.Valid() {
		return in.Op.String(), in.Next
	}

	var parts []string
	var comments []string
	for i, kind := range in.Op.Operands() {
		v := in.Operands[i]
		switch kind {
		case OperandString:
			parts = append(parts, fmt.Sprintf("%d", v))
			comments = append(comments, fmt.Sprintf("%q", abbreviate(img.stringOrIndex(v))))
		case OperandTarget:
			parts = append(parts, fmt.Sprintf("%04X", v))
		case OperandFunction:
			parts = append(parts, fmt.Sprintf("%d", v))
			comments = append(comments, img.FunctionName(int(v)))
		default:
			parts = append(parts, fmt.Sprintf("%d", v))
		}
	}

	line := in.Op.String()
	if len(parts) > 0 {
		line = fmt.Sprintf("%-10s %s", in.Op, strings.Join(parts, " "))
	}
	if len(comments) > 0 {
		line = fmt.Sprintf("%-30s ; %s", line, strings.Join(comments, ", "))
	}
	return line, in.Next
}

func (img *Image) stringOrIndex(i uint64) string {
	if s, err := img.String(i); err == nil {
		return s
	}
	return fmt.Sprintf("<string %d>", i)
}

func abbreviate(s string) string {
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

// InstructionCount counts the instructions in the code section. Jump table
// entries count as instructions of their own.
func (img *Image) InstructionCount() int {
	count := 0
	for offset := 0; offset < len(img.Code); count++ {
		_, offset = img.disassembleInstruction(offset)
	}
	return count
}
