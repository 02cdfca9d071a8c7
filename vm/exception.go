package vm

import (
	"errors"
	"fmt"
	"strings"
)

// Exception names raised by the executor itself.
const (
	ExceptionDivideByZero  = "NumberException.DivideByZero"
	ExceptionStackOverflow = "StackOverflowException"
)

// Exception is a raised exception. It is distinct from *Fault: the program
// may catch it when the image carries handlers. Run returns it when nothing
// catches it.
type Exception struct {
	Name   string
	Info   Cell
	IP     int
	Module string
}

// NewException creates an exception for raising from host code.
func NewException(name string, info Cell) *Exception {
	return &Exception{Name: name, Info: info}
}

func (e *Exception) Error() string {
	return fmt.Sprintf("unhandled exception %s (%s)", e.Name, e.Info)
}

// Value returns the cell a handler receives: [name, info, offset].
func (e *Exception) Value() Cell {
	return NewArray(String(e.Name), e.Info, Number(float64(e.IP)))
}

// IsException reports whether err is, or wraps, an *Exception.
func IsException(err error) bool {
	var x *Exception
	return errors.As(err, &x)
}

// catches reports whether a handler for name catches exception: either the
// names match or the handler names a dotted prefix of the exception.
func catches(handler, exception string) bool {
	return exception == handler ||
		(strings.HasPrefix(exception, handler) && len(exception) > len(handler) && exception[len(handler)] == '.')
}

// ---------------------------------------------------------------------------
// Unwinding
// ---------------------------------------------------------------------------

// raise signals an exception from the current instruction. The dispatch
// loop recovers it and either transfers control to a handler or ends the
// run with it.
func (e *Executor) raise(name string, info Cell) {
	panic(&Exception{Name: name, Info: info, IP: e.opStart, Module: e.module.Name})
}

// unwind looks for a handler covering the raise point, walking outward
// through the frame chain. On success the frames above the handler are
// discarded, the operand stack is trimmed and the exception value is pushed.
func (e *Executor) unwind(x *Exception) bool {
	module := e.module
	ip := e.opStart
	depth := len(e.frames)
	for {
		for _, h := range module.Image.Exceptions {
			if ip < h.Start || ip >= h.End {
				continue
			}
			name, err := module.Image.String(h.Name)
			if err != nil || !catches(name, x.Name) {
				continue
			}
			e.frames = e.frames[:depth]
			base := 0
			if depth > 0 {
				base = e.frames[depth-1].StackBase
			}
			if keep := base + h.StackDepth; keep < len(e.stack) {
				e.stack = e.stack[:keep]
			}
			e.module = module
			e.ip = h.Handler
			e.push(x.Value())
			e.log.Debugf("exception %s caught by handler at %04X", x.Name, h.Handler)
			return true
		}
		if depth == 0 {
			return false
		}
		f := e.frames[depth-1]
		module = f.ReturnModule
		// The return address follows the call; the call itself lies before it.
		ip = f.ReturnIP - 1
		depth--
	}
}
