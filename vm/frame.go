package vm

import "github.com/chazu/nex/pkg/bytecode"

// Frame is the activation record of one function invocation. Outer links to
// the frame of the lexically enclosing function so nested functions can
// address its locals. Pointers to locals hold the frame itself, which keeps
// it alive after it returns.
type Frame struct {
	Function *bytecode.Function
	Index    int
	Module   *Module
	Nest     int
	Outer    *Frame
	Locals   []Cell

	ReturnIP     int
	ReturnModule *Module

	// StackBase is the operand stack height that belongs to the caller.
	// Exception handlers trim the stack relative to it.
	StackBase int
}

// Name returns the function name for diagnostics.
func (f *Frame) Name() string {
	return f.Module.Image.FunctionName(f.Index)
}
