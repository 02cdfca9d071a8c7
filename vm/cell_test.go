package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	shared := &Pointer{Kind: PointerHeap, Target: new(Cell)}
	handle := new(int)

	tests := []struct {
		name string
		a, b Cell
		want bool
	}{
		{"none", None, None, true},
		{"booleans", Boolean(true), Boolean(true), true},
		{"numbers", Number(1.5), Number(1.5), true},
		{"different kinds", Number(1), String("1"), false},
		{"strings", String("a"), String("a"), true},
		{"string and bytes", String("a"), Bytes([]byte("a")), false},
		{"arrays", NewArray(Number(1), String("x")), NewArray(Number(1), String("x")), true},
		{"array order", NewArray(Number(1), Number(2)), NewArray(Number(2), Number(1)), false},
		{"nested arrays", NewArray(NewArray(None)), NewArray(NewArray(None)), true},
		{"dictionaries", NewDictionary(map[string]Cell{"k": Number(1)}), NewDictionary(map[string]Cell{"k": Number(1)}), true},
		{"dictionary values", NewDictionary(map[string]Cell{"k": Number(1)}), NewDictionary(map[string]Cell{"k": Number(2)}), false},
		{"same pointer", PointerCell(shared), PointerCell(shared), true},
		{"equal descriptors", PointerCell(&Pointer{Kind: PointerHeap, Target: shared.Target}), PointerCell(shared), true},
		{"distinct targets", PointerCell(&Pointer{Kind: PointerHeap, Target: new(Cell)}), PointerCell(shared), false},
		{"nil pointers", PointerCell(NilPointer), PointerCell(&Pointer{}), true},
		{"same handle", VoidPointer(handle), VoidPointer(handle), true},
		{"distinct handles", VoidPointer(handle), VoidPointer(new(int)), false},
		{"uncomparable handles", VoidPointer([]int{1}), VoidPointer([]int{1}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestLocalPointerKindsAlias(t *testing.T) {
	f := &Frame{Locals: make([]Cell, 2)}
	a := &Pointer{Kind: PointerLocal, Frame: f, Index: 1}
	b := &Pointer{Kind: PointerOuterLocal, Frame: f, Index: 1}
	assert.True(t, a.Same(b))
	assert.False(t, a.Same(&Pointer{Kind: PointerLocal, Frame: &Frame{}, Index: 1}))
}

func TestCloneIsDeep(t *testing.T) {
	inner := NewArray(Number(1))
	orig := NewArray(inner, NewDictionary(map[string]Cell{"k": String("v")}))
	c := orig.Clone()
	assert.True(t, Equal(orig, c))

	c.Array().Elems[0].Array().Elems[0] = Number(2)
	c.Array().Elems[1].Dictionary().Entries["k"] = String("w")
	assert.Equal(t, Number(1), inner.Array().Elems[0])
	assert.Equal(t, String("v"), orig.Array().Elems[1].Dictionary().Entries["k"])
}

func TestCloneKeepsPointerTarget(t *testing.T) {
	target := Number(3)
	p := PointerCell(&Pointer{Kind: PointerHeap, Target: &target})
	assert.True(t, Equal(p, p.Clone()))
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		cell Cell
		want string
	}{
		{None, "<none>"},
		{Boolean(true), "TRUE"},
		{Boolean(false), "FALSE"},
		{Number(3), "3"},
		{Number(-0.25), "-0.25"},
		{String("a\"b"), `"a\"b"`},
		{Bytes([]byte{0x01, 0xab}), `HEXBYTES "01 ab"`},
		{NewArray(Number(1), String("x")), `[1, "x"]`},
		{NewDictionary(map[string]Cell{"b": Number(2), "a": Number(1)}), `{"a": 1, "b": 2}`},
		{ObjectCell(&Object{Fields: []Cell{Number(1), None}}), "<object 1, <none>>"},
		{PointerCell(NilPointer), "<pointer nil>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cell.Literal())
	}
}

func TestStringLeavesTopLevelStringsUnquoted(t *testing.T) {
	assert.Equal(t, "plain", String("plain").String())
	assert.Equal(t, `["quoted"]`, NewArray(String("quoted")).String())
}
