package builtins

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

// run executes the program with the runtime library installed and returns
// the final stack and output.
func run(t *testing.T, b *bytecode.Builder, opts ...Option) ([]vm.Cell, string, error) {
	t.Helper()
	img, err := b.Image()
	require.NoError(t, err)
	bridge := vm.NewBridge()
	Register(bridge, opts...)
	var out bytes.Buffer
	e := vm.New(img, vm.WithBridge(bridge), vm.WithStdout(&out))
	err = e.Run()
	return e.Stack(), out.String(), err
}

// call builds a program that pushes the given numbers and strings and then
// calls the builtin. Slices become arrays, pushed last element first.
func call(name string, operands ...any) *bytecode.Builder {
	b := bytecode.NewBuilder()
	for _, op := range operands {
		switch v := op.(type) {
		case float64:
			b.EmitNumber(v)
		case int:
			b.EmitNumber(float64(v))
		case string:
			b.EmitString(bytecode.OpPushS, v)
		case bool:
			if v {
				b.Emit(bytecode.OpPushB, 1)
			} else {
				b.Emit(bytecode.OpPushB, 0)
			}
		case []byte:
			b.EmitString(bytecode.OpPushY, string(v))
		case []float64:
			for i := len(v) - 1; i >= 0; i-- {
				b.EmitNumber(v[i])
			}
			b.Emit(bytecode.OpConsA, uint64(len(v)))
		case []string:
			for i := len(v) - 1; i >= 0; i-- {
				b.EmitString(bytecode.OpPushS, v[i])
			}
			b.Emit(bytecode.OpConsA, uint64(len(v)))
		default:
			panic("unsupported operand")
		}
	}
	b.EmitString(bytecode.OpCallP, name)
	return b
}

func numbers(ns ...float64) vm.Cell {
	cells := make([]vm.Cell, len(ns))
	for i, n := range ns {
		cells[i] = vm.Number(n)
	}
	return vm.NewArray(cells...)
}

func strs(ss ...string) vm.Cell {
	cells := make([]vm.Cell, len(ss))
	for i, s := range ss {
		cells[i] = vm.String(s)
	}
	return vm.NewArray(cells...)
}

func TestPureBuiltins(t *testing.T) {
	tests := []struct {
		name     string
		builtin  string
		operands []any
		want     vm.Cell
	}{
		{"str integral", "str", []any{42}, vm.String("42")},
		{"str fraction", "str", []any{2.5}, vm.String("2.5")},
		{"num", "num", []any{"12.5"}, vm.Number(12.5)},
		{"boolean", "boolean__toString", []any{true}, vm.String("TRUE")},

		{"concat arrays", "array__concat", []any{[]float64{1}, []float64{2, 3}}, numbers(1, 2, 3)},
		{"array size", "array__size", []any{[]float64{1, 2, 3}}, vm.Number(3)},
		{"range", "array__range", []any{1, 7, 3}, numbers(1, 4, 7)},
		{"range down", "array__range", []any{3, 1, -1}, numbers(3, 2, 1)},
		{"reversed", "array__reversed", []any{[]float64{1, 2, 3}}, numbers(3, 2, 1)},
		{"slice", "array__slice", []any{[]float64{1, 2, 3, 4}, 1, false, 2, false}, numbers(2, 3)},
		{"slice from end", "array__slice", []any{[]float64{1, 2, 3, 4}, -1, true, 0, true}, numbers(3, 4)},
		{"slice empty", "array__slice", []any{[]float64{1, 2}, 2, false, 0, false}, numbers()},
		{"find", "array__find", []any{[]string{"a", "b"}, "b"}, vm.Number(1)},
		{"numbers to string", "array__toString__number", []any{[]float64{1, 2.5}}, vm.String("[1, 2.5]")},
		{"strings to string", "array__toString__string", []any{[]string{"a", "b"}}, vm.String(`["a", "b"]`)},
		{"numbers to bytes", "array__toBytes__number", []any{[]float64{104, 105}}, vm.Bytes([]byte("hi"))},

		{"bytes size", "bytes__size", []any{[]byte("abc")}, vm.Number(3)},
		{"bytes concat", "bytes__concat", []any{[]byte("ab"), []byte("c")}, vm.Bytes([]byte("abc"))},
		{"bytes to array", "bytes__toArray", []any{[]byte{1, 2}}, numbers(1, 2)},
		{"bytes decode", "bytes__decodeToString", []any{[]byte("hé")}, vm.String("hé")},
		{"bytes index", "bytes__index", []any{[]byte{7, 8}, 1}, vm.Number(8)},
		{"bytes range", "bytes__range", []any{[]byte("hello"), 1, false, 3, false}, vm.Bytes([]byte("ell"))},
		{"bytes to string", "bytes__toString", []any{[]byte{0x0f, 0xa0}}, vm.String(`HEXBYTES "0f a0"`)},

		{"string concat", "string__concat", []any{"foo", "bar"}, vm.String("foobar")},
		{"string length", "string__length", []any{"four"}, vm.Number(4)},
		{"substring", "string__substring", []any{"hello", 1, false, 3, false}, vm.String("ell")},
		{"substring from end", "string__substring", []any{"hello", -1, true, 0, true}, vm.String("lo")},
		{"string index", "string__index", []any{"abc", 2}, vm.String("c")},
		{"to bytes", "string__toBytes", []any{"hi"}, vm.Bytes([]byte("hi"))},
		{"upper", "string$upper", []any{"MiXed"}, vm.String("MIXED")},
		{"lower", "string$lower", []any{"MiXed"}, vm.String("mixed")},
		{"split", "string$split", []any{"a,b,,c", ","}, strs("a", "b", "", "c")},
		{"find hit", "string$find", []any{"hello", "ll"}, numbers(1, 2)},
		{"find miss", "string$find", []any{"hello", "z"}, numbers(0)},
		{"quoted", "string$quoted", []any{`a"b`}, vm.String(`"a\"b"`)},
		{"trim", "string$trimCharacters", []any{"--x++", "-", "+"}, vm.String("x")},

		{"abs", "math$abs", []any{-3}, vm.Number(3)},
		{"floor", "math$floor", []any{2.7}, vm.Number(2)},
		{"ceil", "math$ceil", []any{2.1}, vm.Number(3)},
		{"sqrt", "math$sqrt", []any{16}, vm.Number(4)},
		{"intdiv", "math$intdiv", []any{-7, 2}, vm.Number(-3)},
		{"max", "math$max", []any{2, 5}, vm.Number(5)},
		{"min", "math$min", []any{2, 5}, vm.Number(2)},
		{"odd", "math$odd", []any{7}, vm.Boolean(true)},
		{"sign negative", "math$sign", []any{-2.5}, vm.Number(-1)},
		{"sign positive", "math$sign", []any{4}, vm.Number(1)},
		{"sign zero", "math$sign", []any{0}, vm.Number(0)},
		{"sign negative zero", "math$sign", []any{math.Copysign(0, -1)}, vm.Number(0)},
		{"range empty", "array__range", []any{5, 1, 1}, numbers()},
		{"range fractional step", "array__range", []any{0, 1, 0.25}, numbers(0, 0.25, 0.5, 0.75, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack, _, err := run(t, call(tt.builtin, tt.operands...))
			require.NoError(t, err)
			require.Len(t, stack, 1)
			assert.True(t, vm.Equal(tt.want, stack[0]), "got %s, want %s", stack[0].Literal(), tt.want.Literal())
		})
	}
}

func TestRaisingBuiltins(t *testing.T) {
	tests := []struct {
		name     string
		builtin  string
		operands []any
		want     string
	}{
		{"num", "num", []any{"twelve"}, ExceptionValueRange},
		{"range step", "array__range", []any{1, 5, 0}, ExceptionValueRange},
		{"range NaN step", "array__range", []any{1, 5, math.NaN()}, ExceptionValueRange},
		{"range subnormal step", "array__range", []any{0, 1, 5e-324}, ExceptionValueRange},
		{"range too long", "array__range", []any{0, 1e12, 1}, ExceptionValueRange},
		{"range NaN bound", "array__range", []any{0, math.NaN(), 1}, ExceptionValueRange},
		{"find", "array__find", []any{[]float64{1}, 2}, ExceptionArrayIndex},
		{"slice", "array__slice", []any{[]float64{1}, 0.5, false, 1, false}, ExceptionArrayIndex},
		{"byte range", "array__toBytes__number", []any{[]float64{256}}, ExceptionByteRange},
		{"bytes index", "bytes__index", []any{[]byte{1}, 1}, ExceptionBytesIndex},
		{"string index", "string__index", []any{"abc", -1}, ExceptionStringIndex},
		{"intdiv", "math$intdiv", []any{1, 0}, vm.ExceptionDivideByZero},
		{"odd", "math$odd", []any{1.5}, ExceptionValueRange},
		{"exit code", "sys$exit", []any{300}, ExceptionInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, call(tt.builtin, tt.operands...))
			var x *vm.Exception
			require.True(t, errors.As(err, &x), "got %v", err)
			assert.Equal(t, tt.want, x.Name)
		})
	}
}

func TestArgumentTypeMismatchFaults(t *testing.T) {
	_, _, err := run(t, call("string__length", 3))
	assert.True(t, vm.IsFault(err))
	assert.ErrorIs(t, err, vm.ErrTypeMismatch)
}

func TestMissingArgumentFaults(t *testing.T) {
	_, _, err := run(t, call("string__concat", "only"))
	assert.True(t, vm.IsFault(err))
	assert.ErrorIs(t, err, vm.ErrStackUnderflow)
}

// mutate stores initial into global 0, calls a builtin that updates it
// through a pointer and loads the result.
func mutate(initial []float64, name string, push func(b *bytecode.Builder), load bytecode.Opcode) *bytecode.Builder {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	if initial != nil {
		for i := len(initial) - 1; i >= 0; i-- {
			b.EmitNumber(initial[i])
		}
		b.Emit(bytecode.OpConsA, uint64(len(initial)))
		b.Emit(bytecode.OpPushPG, 0)
		b.Emit(bytecode.OpStoreA)
	}
	b.Emit(bytecode.OpPushPG, 0)
	push(b)
	b.EmitString(bytecode.OpCallP, name)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(load)
	return b
}

func TestArrayMutators(t *testing.T) {
	tests := []struct {
		name    string
		initial []float64
		builtin string
		push    func(b *bytecode.Builder)
		want    vm.Cell
	}{
		{"append", []float64{1}, "array__append", func(b *bytecode.Builder) { b.EmitNumber(2) }, numbers(1, 2)},
		{"append to unset", nil, "array__append", func(b *bytecode.Builder) { b.EmitNumber(5) }, numbers(5)},
		{"extend", []float64{1}, "array__extend", func(b *bytecode.Builder) {
			b.EmitNumber(3)
			b.EmitNumber(2)
			b.Emit(bytecode.OpConsA, 2)
		}, numbers(1, 2, 3)},
		{"remove", []float64{1, 2, 3}, "array__remove", func(b *bytecode.Builder) { b.EmitNumber(1) }, numbers(1, 3)},
		{"resize grow", []float64{1}, "array__resize", func(b *bytecode.Builder) { b.EmitNumber(3) }, vm.NewArray(vm.Number(1), vm.None, vm.None)},
		{"resize shrink", []float64{1, 2, 3}, "array__resize", func(b *bytecode.Builder) { b.EmitNumber(1) }, numbers(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack, _, err := run(t, mutate(tt.initial, tt.builtin, tt.push, bytecode.OpLoadA))
			require.NoError(t, err)
			require.Len(t, stack, 1)
			assert.True(t, vm.Equal(tt.want, stack[0]), "got %s", stack[0].Literal())
		})
	}
}

func TestAppendDoesNotAliasSource(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(2)
	b.EmitNumber(1)
	b.Emit(bytecode.OpConsA, 1)
	b.Emit(bytecode.OpDup)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreA)
	b.Emit(bytecode.OpPushPG, 1)
	b.Emit(bytecode.OpStoreA)
	b.Emit(bytecode.OpPushPG, 0)
	b.EmitNumber(2)
	b.EmitString(bytecode.OpCallP, "array__append")
	b.Emit(bytecode.OpPushPG, 1)
	b.Emit(bytecode.OpLoadA)

	stack, _, err := run(t, b)
	require.NoError(t, err)
	assert.True(t, vm.Equal(numbers(1), stack[0]))
}

func TestStringAppend(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.EmitString(bytecode.OpPushS, "foo")
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreS)
	b.Emit(bytecode.OpPushPG, 0)
	b.EmitString(bytecode.OpPushS, "bar")
	b.EmitString(bytecode.OpCallP, "string__append")
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadS)
	b.EmitString(bytecode.OpCallP, "print")

	_, out, err := run(t, b)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", out)
}

func TestDictionaryBuiltins(t *testing.T) {
	b := bytecode.NewBuilder()
	b.SetGlobalSize(1)
	b.EmitString(bytecode.OpPushS, "b")
	b.EmitNumber(2)
	b.EmitString(bytecode.OpPushS, "a")
	b.EmitNumber(1)
	b.Emit(bytecode.OpConsD, 2)
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpStoreD)

	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadD)
	b.EmitString(bytecode.OpCallP, "dictionary__keys")

	b.Emit(bytecode.OpPushPG, 0)
	b.EmitString(bytecode.OpPushS, "a")
	b.EmitString(bytecode.OpCallP, "dictionary__remove")
	b.Emit(bytecode.OpPushPG, 0)
	b.Emit(bytecode.OpLoadD)
	b.EmitString(bytecode.OpCallP, "dictionary__keys")

	stack, _, err := run(t, b)
	require.NoError(t, err)
	require.Len(t, stack, 2)
	assert.True(t, vm.Equal(strs("a", "b"), stack[0]))
	assert.True(t, vm.Equal(strs("b"), stack[1]))
}

func TestRuntimeBuiltins(t *testing.T) {
	stack, _, err := run(t, call("runtime$assertionsEnabled"), WithAssertions(false))
	require.NoError(t, err)
	assert.Equal(t, []vm.Cell{vm.Boolean(false)}, stack)

	clock := func() time.Time { return time.Unix(1700000000, 5) }
	stack, _, err = run(t, call("time$now"), WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, []vm.Cell{vm.Number(1700000000)}, stack)
}

func TestSetRecursionLimit(t *testing.T) {
	b := bytecode.NewBuilder()
	f := b.AddFunction("forever", 0, 0, 0, 0)
	b.EmitNumber(5)
	b.EmitString(bytecode.OpCallP, "runtime$setRecursionLimit")
	b.Emit(bytecode.OpCallF, uint64(f))
	b.SetFunctionEntry(f, b.Offset())
	b.Emit(bytecode.OpCallF, uint64(f))

	img, err := b.Image()
	require.NoError(t, err)
	bridge := vm.NewBridge()
	Register(bridge)
	e := vm.New(img, vm.WithBridge(bridge))
	err = e.Run()

	var x *vm.Exception
	require.True(t, errors.As(err, &x), "got %v", err)
	assert.Equal(t, vm.ExceptionStackOverflow, x.Name)
	assert.Equal(t, 5, e.FrameDepth())
}

func TestExit(t *testing.T) {
	_, _, err := run(t, call("sys$exit", 3))
	var exit *vm.ExitError
	require.True(t, errors.As(err, &exit), "got %v", err)
	assert.Equal(t, 3, exit.Code)
}

func TestNamesAreRegistered(t *testing.T) {
	bridge := vm.NewBridge()
	Register(bridge)
	for _, name := range Names() {
		assert.Contains(t, bridge.Builtins, name)
	}
	assert.Contains(t, bridge.Builtins, "print")
}
