package vm

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/nex/pkg/bytecode"
)

// Executor runs one program image to completion or failure. It owns all
// execution state; nothing is shared between executors.
type Executor struct {
	main    *Module
	module  *Module // Module whose code is executing
	modules map[string]*Module

	ip      int
	opStart int
	op      bytecode.Opcode

	stack  []Cell
	frames []*Frame

	predefined map[string]*Cell
	bridge     *Bridge

	recursionLimit int
	stackParams    bool
	name           string
	args           []string
	stdout         io.Writer
	log            commonlog.Logger
	runID          uuid.UUID

	steps  uint64
	done   bool
	failed error

	// Trace logs each instruction at debug level.
	Trace bool
}

// New creates an executor for img. Execution starts at offset 0 of the
// image's code with no active frame.
func New(img *bytecode.Image, opts ...Option) *Executor {
	e := &Executor{
		modules:        make(map[string]*Module),
		stack:          make([]Cell, 0, 256),
		predefined:     make(map[string]*Cell),
		recursionLimit: DefaultRecursionLimit,
		name:           DefaultExecutorName,
		stdout:         os.Stdout,
		log:            commonlog.GetLogger("nex.vm"),
		runID:          uuid.New(),
	}
	e.main = NewModule("", img, nil)
	e.module = e.main
	for _, opt := range opts {
		opt(e)
	}
	if e.bridge == nil {
		e.bridge = NewBridge()
	}

	argv := make([]Cell, len(e.args))
	for i, a := range e.args {
		argv[i] = String(a)
	}
	args := NewArray(argv...)
	e.predefined["sys$args"] = &args
	return e
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// Run executes until the program ends. It returns nil on normal
// completion, a *Fault for malformed execution, an *Exception for an
// uncaught raise and an *ExitError when the program asks to exit.
func (e *Executor) Run() error {
	e.log.Infof("run %s: starting (%d code bytes, %d globals)", e.runID, len(e.main.Image.Code), len(e.main.Globals))
	for !e.done {
		if err := e.Step(); err != nil {
			e.logFailure(err)
			return err
		}
	}
	e.log.Infof("run %s: finished after %d steps", e.runID, e.steps)
	return nil
}

// Step executes a single instruction. After the program has ended it keeps
// returning the error that ended it, or nil.
func (e *Executor) Step() (err error) {
	if e.done {
		return e.failed
	}
	code := e.module.Image.Code
	if e.ip < 0 || e.ip >= len(code) {
		if len(e.frames) == 0 && e.module == e.main && e.ip >= len(code) {
			e.done = true
			return nil
		}
		e.opStart = e.ip
		return e.finish(e.faultf(ErrBadAddress, "instruction pointer %d outside code of length %d", e.ip, len(code)))
	}

	e.opStart = e.ip
	e.op = bytecode.Opcode(code[e.ip])
	e.ip++
	e.steps++

	if e.Trace && e.log.AllowLevel(commonlog.Debug) {
		e.log.Debugf("[%04x] %-10s sp=%d fp=%d", e.opStart, e.op, len(e.stack), len(e.frames))
	}

	defer func() {
		if r := recover(); r != nil {
			err = e.recoverSignal(r)
		}
	}()
	e.dispatch(e.op)
	return nil
}

// recoverSignal turns a panic raised by an instruction into the step's
// result. A Go runtime error becomes a fault at the current instruction.
func (e *Executor) recoverSignal(r any) error {
	switch sig := r.(type) {
	case *Fault:
		return e.finish(sig)
	case *Exception:
		if e.unwind(sig) {
			return nil
		}
		return e.finish(sig)
	case *ExitError:
		return e.finish(sig)
	case runtime.Error:
		return e.finish(e.fault(fmt.Errorf("%w: %v", ErrInternal, sig)))
	}
	panic(r)
}

func (e *Executor) finish(err error) error {
	e.done = true
	e.failed = err
	return err
}

func (e *Executor) logFailure(err error) {
	switch err.(type) {
	case *ExitError:
		e.log.Infof("run %s: %v", e.runID, err)
	case *Exception:
		e.log.Warningf("run %s: %v", e.runID, err)
	default:
		e.log.Errorf("run %s: %v", e.runID, err)
	}
}

// fault builds the fault for the current instruction.
func (e *Executor) fault(err error) *Fault {
	return &Fault{Op: e.op, IP: e.opStart, Module: e.module.Name, Err: err}
}

func (e *Executor) faultf(sentinel error, format string, args ...any) *Fault {
	return e.fault(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// fail aborts the current instruction with a fault.
func (e *Executor) fail(sentinel error, format string, args ...any) {
	panic(e.faultf(sentinel, format, args...))
}

// ---------------------------------------------------------------------------
// State accessors
// ---------------------------------------------------------------------------

// IP returns the offset of the next instruction.
func (e *Executor) IP() int { return e.ip }

// StackDepth returns the operand stack height.
func (e *Executor) StackDepth() int { return len(e.stack) }

// FrameDepth returns the number of active frames.
func (e *Executor) FrameDepth() int { return len(e.frames) }

// Done reports whether the run has ended.
func (e *Executor) Done() bool { return e.done }

// RunID identifies this run in logs and snapshots.
func (e *Executor) RunID() uuid.UUID { return e.runID }

// Steps returns the number of instructions executed.
func (e *Executor) Steps() uint64 { return e.steps }

// Stack returns a copy of the operand stack, bottom first.
func (e *Executor) Stack() []Cell {
	return append([]Cell(nil), e.stack...)
}

// Global returns global slot i of the main module.
func (e *Executor) Global(i int) (Cell, error) {
	if i < 0 || i >= len(e.main.Globals) {
		return None, fmt.Errorf("%w: global %d of %d", ErrBadAddress, i, len(e.main.Globals))
	}
	return e.main.Globals[i], nil
}

// Module returns a registered module by name.
func (e *Executor) Module(name string) (*Module, bool) {
	m, ok := e.modules[name]
	return m, ok
}

// ---------------------------------------------------------------------------
// Machine implementation for builtins
// ---------------------------------------------------------------------------

// Pop removes the top of the operand stack.
func (e *Executor) Pop() (Cell, error) {
	if len(e.stack) == 0 {
		return None, ErrStackUnderflow
	}
	c := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return c, nil
}

// Push pushes onto the operand stack.
func (e *Executor) Push(c Cell) { e.stack = append(e.stack, c) }

// Load reads the cell a pointer addresses, as a copy.
func (e *Executor) Load(p *Pointer) (Cell, error) {
	loc, err := e.resolve(p)
	if err != nil {
		return None, err
	}
	return loc.get().Clone(), nil
}

// Store writes a copy of c where p points.
func (e *Executor) Store(p *Pointer, c Cell) error {
	loc, err := e.resolve(p)
	if err != nil {
		return err
	}
	loc.set(c.Clone())
	return nil
}

// Stdout is where program output goes.
func (e *Executor) Stdout() io.Writer { return e.stdout }

// ExecutorName is reported by runtime$executorName.
func (e *Executor) ExecutorName() string { return e.name }

// RecursionLimit returns the maximum frame depth.
func (e *Executor) RecursionLimit() int { return e.recursionLimit }

// SetRecursionLimit changes the maximum frame depth.
func (e *Executor) SetRecursionLimit(n int) {
	if n > 0 {
		e.recursionLimit = n
	}
}

// Args returns the program arguments.
func (e *Executor) Args() []string { return e.args }

// SetPredefined publishes a predefined global for PUSHPPG.
func (e *Executor) SetPredefined(name string, c Cell) {
	v := c
	e.predefined[name] = &v
}
