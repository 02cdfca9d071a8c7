package vm

import (
	"io"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

const (
	// DefaultRecursionLimit bounds the frame chain before
	// StackOverflowException is raised.
	DefaultRecursionLimit = 1000

	// DefaultExecutorName is reported by runtime$executorName.
	DefaultExecutorName = "nex"
)

// Option configures an Executor.
type Option func(*Executor)

// WithStdout directs program output.
func WithStdout(w io.Writer) Option {
	return func(e *Executor) { e.stdout = w }
}

// WithArgs sets the program arguments published as sys$args.
func WithArgs(args []string) Option {
	return func(e *Executor) { e.args = append([]string(nil), args...) }
}

// WithRecursionLimit bounds call depth. Values below 1 keep the default.
func WithRecursionLimit(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.recursionLimit = n
		}
	}
}

// WithTrace logs every instruction at debug level.
func WithTrace(trace bool) Option {
	return func(e *Executor) { e.Trace = trace }
}

// WithExecutorName overrides the name runtime$executorName reports.
func WithExecutorName(name string) Option {
	return func(e *Executor) {
		if name != "" {
			e.name = name
		}
	}
}

// WithLogger replaces the executor's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithBridge supplies the builtins, extensions and external globals.
func WithBridge(b *Bridge) Option {
	return func(e *Executor) { e.bridge = b }
}

// WithModule registers a module for CALLMF, PUSHPMG and qualified PUSHCI.
func WithModule(m *Module) Option {
	return func(e *Executor) { e.modules[m.Name] = m }
}

// WithStackParams leaves call arguments on the operand stack instead of
// binding them to locals, for code whose function prologues store their
// own parameters.
func WithStackParams(on bool) Option {
	return func(e *Executor) { e.stackParams = on }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id uuid.UUID) Option {
	return func(e *Executor) { e.runID = id }
}
