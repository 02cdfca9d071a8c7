package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/nex/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Runtime Fault Types
// ---------------------------------------------------------------------------

var (
	ErrInvalidOpcode     = errors.New("invalid opcode")
	ErrTruncatedOperand  = errors.New("truncated instruction operand")
	ErrStackUnderflow    = errors.New("operand stack underflow")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrInvalidIndex      = errors.New("index is not a non-negative integer")
	ErrKeyNotFound       = errors.New("dictionary key not found")
	ErrBadAddress        = errors.New("address out of range")
	ErrNilPointer        = errors.New("nil pointer dereference")
	ErrInvalidNumber     = errors.New("invalid number literal")
	ErrNoFrame           = errors.New("no active frame")
	ErrFrameChain        = errors.New("inconsistent frame chain")
	ErrUnknownBuiltin    = errors.New("unknown builtin")
	ErrUnknownExtension  = errors.New("unknown extension")
	ErrUnknownModule     = errors.New("unknown module")
	ErrUnknownGlobal     = errors.New("unknown global")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrUnknownClass      = errors.New("unknown class")
	ErrInvalidDispatch   = errors.New("invalid interface dispatch")
	ErrExecutionFinished = errors.New("execution already finished")
	ErrInternal          = errors.New("internal error")
)

// Fault is a fatal error detected while executing an instruction. Op and IP
// identify the instruction; Module is empty for the main program.
type Fault struct {
	Op     bytecode.Opcode
	IP     int
	Module string
	Err    error
}

func (f *Fault) Error() string {
	if f.Module != "" {
		return fmt.Sprintf("runtime fault at %s:%04X (%s): %v", f.Module, f.IP, f.Op, f.Err)
	}
	return fmt.Sprintf("runtime fault at %04X (%s): %v", f.IP, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsFault reports whether err is, or wraps, a *Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// ExitError requests termination of the run with a process exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
