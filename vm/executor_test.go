package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/nex/pkg/bytecode"
)

// newTestExecutor loads the builder's image and captures program output.
func newTestExecutor(t *testing.T, b *bytecode.Builder, opts ...Option) (*Executor, *bytes.Buffer) {
	t.Helper()
	img, err := b.Image()
	require.NoError(t, err)
	var out bytes.Buffer
	opts = append([]Option{WithStdout(&out)}, opts...)
	return New(img, opts...), &out
}

// runProgram runs the builder's program to completion.
func runProgram(t *testing.T, b *bytecode.Builder, opts ...Option) (*Executor, string, error) {
	t.Helper()
	e, out := newTestExecutor(t, b, opts...)
	err := e.Run()
	return e, out.String(), err
}

func requireFault(t *testing.T, err error, sentinel error) *Fault {
	t.Helper()
	var f *Fault
	require.True(t, errors.As(err, &f), "expected *Fault, got %v", err)
	require.ErrorIs(t, err, sentinel)
	return f
}

func TestEmptyProgram(t *testing.T) {
	e, out, err := runProgram(t, bytecode.NewBuilder())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, e.Done())
}

func TestPrintHello(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpPushS, "hello")
	b.EmitString(bytecode.OpCallP, "print")

	_, out, err := runProgram(t, b)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestExecutorName(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpCallP, "runtime$executorName")
	b.EmitString(bytecode.OpCallP, "print")

	_, out, err := runProgram(t, b)
	require.NoError(t, err)
	assert.Equal(t, "nex\n", out)

	_, out, err = runProgram(t, b, WithExecutorName("custom"))
	require.NoError(t, err)
	assert.Equal(t, "custom\n", out)
}

func TestUnknownBuiltin(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpPushS, "x")
	b.EmitString(bytecode.OpCallP, "no$such")

	_, _, err := runProgram(t, b)
	f := requireFault(t, err, ErrUnknownBuiltin)
	assert.Equal(t, bytecode.OpCallP, f.Op)
	assert.Equal(t, 2, f.IP)
	assert.Contains(t, err.Error(), "no$such")
}

func TestInvalidOpcode(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushI, 1)
	b.EmitRaw(0xF0)

	_, _, err := runProgram(t, b)
	f := requireFault(t, err, ErrInvalidOpcode)
	assert.Equal(t, 2, f.IP)
	assert.False(t, IsException(err))
}

func TestTruncatedOperand(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitRaw(byte(bytecode.OpPushI), 0x81)

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrTruncatedOperand)
}

func TestStackUnderflow(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpDrop)

	_, _, err := runProgram(t, b)
	f := requireFault(t, err, ErrStackUnderflow)
	assert.Equal(t, bytecode.OpDrop, f.Op)
}

func TestStepAfterFinish(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpDrop)
	e, _ := newTestExecutor(t, b)

	err := e.Step()
	require.Error(t, err)
	assert.True(t, e.Done())
	assert.Equal(t, err, e.Step())
}

// ---------------------------------------------------------------------------
// Stack discipline
// ---------------------------------------------------------------------------

func TestDupDropIsIdentity(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushI, 1)
	b.EmitString(bytecode.OpPushS, "top")
	b.Emit(bytecode.OpDup)
	b.Emit(bytecode.OpDrop)
	e, _ := newTestExecutor(t, b)

	require.NoError(t, e.Step())
	require.NoError(t, e.Step())
	before := e.Stack()
	require.NoError(t, e.Step())
	assert.Equal(t, 3, e.StackDepth())
	require.NoError(t, e.Step())
	assert.Equal(t, before, e.Stack())
}

func TestSwapSwapIsIdentity(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpPushI, 2)
	b.Emit(bytecode.OpSwap)
	b.Emit(bytecode.OpSwap)
	e, _ := newTestExecutor(t, b)

	require.NoError(t, e.Step())
	require.NoError(t, e.Step())
	before := e.Stack()
	require.NoError(t, e.Step())
	assert.Equal(t, []Cell{Number(2), Number(1)}, e.Stack())
	require.NoError(t, e.Step())
	assert.Equal(t, before, e.Stack())
}

func TestDupX1AndDropN(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpPushI, 2)
	b.Emit(bytecode.OpDupX1)

	e, _, err := runProgram(t, b)
	require.NoError(t, err)
	assert.Equal(t, []Cell{Number(2), Number(1), Number(2)}, e.Stack())

	b = bytecode.NewBuilder()
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpPushI, 2)
	b.Emit(bytecode.OpPushI, 3)
	b.Emit(bytecode.OpDropN, 1)

	e, _, err = runProgram(t, b)
	require.NoError(t, err)
	assert.Equal(t, []Cell{Number(1), Number(3)}, e.Stack())
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

func TestUnwrittenGlobalIsUninitialized(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(2)
	b.Emit(bytecode.OpPushPG, 1)
	b.Emit(bytecode.OpLoadN)

	e, _, err := runProgram(t, b)
	require.NoError(t, err)
	require.Equal(t, 1, e.StackDepth())
	assert.True(t, e.Stack()[0].IsNone())

	g, err := e.Global(1)
	require.NoError(t, err)
	assert.Equal(t, KindNone, g.Kind())
}

func TestStoreAndLoadGlobal(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.Emit(bytecode.OpPushI, 42)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreN)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadN)

	e, _, err := runProgram(t, b)
	require.NoError(t, err)
	assert.Equal(t, []Cell{Number(42)}, e.Stack())
	g, _ := e.Global(0)
	assert.Equal(t, Number(42), g)
}

func TestStoreTypeMismatch(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.EmitString(bytecode.OpPushS, "text")
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreN)

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrTypeMismatch)
}

func TestLoadTypeMismatch(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreN)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadS)

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrTypeMismatch)
}

func TestGlobalOutOfRange(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.Emit(bytecode.OpPushPG, 5)

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrBadAddress)
}

func TestStoredArrayIsCopied(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(2)
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpConsA, 1)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreA)
	// g1 := g0
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadA)
	b.Emit(bytecode.OpPushPG, 1)
	b.Emit(bytecode.OpStoreA)
	// g1[0] := 9
	b.Emit(bytecode.OpPushI, 9)
	b.Emit(bytecode.OpPushPG, 1)
	b.Emit(bytecode.OpPushI, 0)
	b.Emit(bytecode.OpIndexAW)
	b.Emit(bytecode.OpStoreN)

	e, _, err := runProgram(t, b)
	require.NoError(t, err)
	g0, _ := e.Global(0)
	g1, _ := e.Global(1)
	assert.Equal(t, "[1]", g0.Literal())
	assert.Equal(t, "[9]", g1.Literal())
}

func TestResetCell(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreN)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpResetC)

	e, _, err := runProgram(t, b)
	require.NoError(t, err)
	g, _ := e.Global(0)
	assert.True(t, g.IsNone())
}

func TestNilPointerDereference(t *testing.T) {
	b := bytecode.NewBuilder()
	b.Emit(bytecode.OpPushNil)
	b.Emit(bytecode.OpLoadN)

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrNilPointer)
}

func TestPredefinedArgs(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpPushPPG, "sys$args")
	b.Emit(bytecode.OpLoadA)
	b.Emit(bytecode.OpPushI, 1)
	b.Emit(bytecode.OpIndexAV)
	b.EmitString(bytecode.OpCallP, "print")

	_, out, err := runProgram(t, b, WithArgs([]string{"prog", "first"}))
	require.NoError(t, err)
	assert.Equal(t, "first\n", out)
}

func TestUnknownPredefined(t *testing.T) {
	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpPushPPG, "nope$nothing")

	_, _, err := runProgram(t, b)
	requireFault(t, err, ErrUnknownGlobal)
}

func TestExternalGlobal(t *testing.T) {
	bridge := NewBridge()
	bridge.SetExternal("host$greeting", String("hi"))

	b := bytecode.NewBuilder()
	b.EmitString(bytecode.OpPushPEG, "host$greeting")
	b.Emit(bytecode.OpLoadS)
	b.EmitString(bytecode.OpCallP, "print")
	b.EmitString(bytecode.OpPushS, "bye")
	b.EmitString(bytecode.OpPushPEG, "host$greeting")
	b.Emit(bytecode.OpStoreS)

	_, out, err := runProgram(t, b, WithBridge(bridge))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
	assert.Equal(t, String("bye"), *bridge.ExternalGlobals["host$greeting"])
}

func TestSnapshotAfterFault(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.Emit(bytecode.OpPushI, 7)
	b.EmitRaw(0xF0)
	e, _ := newTestExecutor(t, b)

	require.Error(t, e.Run())
	s := e.Snapshot()
	assert.Equal(t, e.RunID().String(), s.RunID)
	assert.Equal(t, 2, s.IP)
	assert.Equal(t, []string{"7"}, s.Stack)
	assert.Equal(t, []string{"<none>"}, s.Globals)
	assert.Contains(t, s.Error, "invalid opcode")
}
