package builtins

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

var arrayBuiltins = map[string]builtin{
	"array__append": func(a *args) error {
		elem := a.value()
		p := a.pointer()
		a.update(p, func(c vm.Cell) vm.Cell {
			return vm.NewArray(append(a.elems(c), elem)...)
		})
		return nil
	},
	"array__concat": func(a *args) error {
		y := a.array()
		x := a.array()
		a.push(vm.NewArray(append(x, y...)...))
		return nil
	},
	"array__extend": func(a *args) error {
		y := a.array()
		p := a.pointer()
		a.update(p, func(c vm.Cell) vm.Cell {
			return vm.NewArray(append(a.elems(c), y...)...)
		})
		return nil
	},
	"array__find": func(a *args) error {
		elem := a.value()
		arr := a.array()
		for i, x := range arr {
			if vm.Equal(x, elem) {
				a.push(vm.Number(float64(i)))
				return nil
			}
		}
		if a.err != nil {
			return nil
		}
		return raise(ExceptionArrayIndex, "value not found in array")
	},
	"array__range": func(a *args) error {
		step := a.number()
		last := a.number()
		first := a.number()
		if a.err != nil {
			return nil
		}
		n, ok := rangeLength(first, last, step)
		if !ok {
			return raise(ExceptionValueRange, "%s to %s step %s",
				bytecode.FormatNumber(first), bytecode.FormatNumber(last), bytecode.FormatNumber(step))
		}
		r := make([]vm.Cell, n)
		for i := range r {
			r[i] = vm.Number(first + float64(i)*step)
		}
		a.push(vm.NewArray(r...))
		return nil
	},
	"array__remove": func(a *args) error {
		index := a.number()
		p := a.pointer()
		if a.err != nil {
			return nil
		}
		var failed error
		a.update(p, func(c vm.Cell) vm.Cell {
			elems := a.elems(c)
			if !integer(index) || index < 0 || index >= float64(len(elems)) {
				failed = raise(ExceptionArrayIndex, "%s", bytecode.FormatNumber(index))
				return c
			}
			i := int(index)
			return vm.NewArray(append(elems[:i:i], elems[i+1:]...)...)
		})
		return failed
	},
	"array__resize": func(a *args) error {
		size := a.number()
		p := a.pointer()
		if a.err != nil {
			return nil
		}
		if !integer(size) || size < 0 {
			return raise(ExceptionArrayIndex, "%s", bytecode.FormatNumber(size))
		}
		a.update(p, func(c vm.Cell) vm.Cell {
			elems := a.elems(c)
			n := int(size)
			if n <= len(elems) {
				return vm.NewArray(elems[:n]...)
			}
			for len(elems) < n {
				elems = append(elems, vm.None)
			}
			return vm.NewArray(elems...)
		})
		return nil
	},
	"array__reversed": func(a *args) error {
		arr := a.array()
		r := make([]vm.Cell, len(arr))
		for i, x := range arr {
			r[len(arr)-1-i] = x
		}
		a.push(vm.NewArray(r...))
		return nil
	},
	"array__size": func(a *args) error {
		a.push(vm.Number(float64(len(a.array()))))
		return nil
	},
	"array__slice": func(a *args) error {
		first, firstFromEnd, last, lastFromEnd := a.bounds()
		arr := a.array()
		if a.err != nil {
			return nil
		}
		if !integer(first) {
			return raise(ExceptionArrayIndex, "%s", bytecode.FormatNumber(first))
		}
		if !integer(last) {
			return raise(ExceptionArrayIndex, "%s", bytecode.FormatNumber(last))
		}
		lo, hi := span(len(arr), int(first), firstFromEnd, int(last), lastFromEnd)
		a.push(vm.NewArray(arr[lo:hi]...))
		return nil
	},
	"array__toBytes__number": func(a *args) error {
		arr := a.array()
		b := make([]byte, len(arr))
		for i, x := range arr {
			n := x.Num()
			if !integer(n) || n < 0 || n >= 256 {
				return raise(ExceptionByteRange, "%s", bytecode.FormatNumber(n))
			}
			b[i] = byte(n)
		}
		a.push(vm.Bytes(b))
		return nil
	},
	"array__toString__number": func(a *args) error {
		a.push(vm.String(join(a.array(), func(c vm.Cell) string { return bytecode.FormatNumber(c.Num()) })))
		return nil
	},
	"array__toString__string": func(a *args) error {
		a.push(vm.String(join(a.array(), func(c vm.Cell) string { return vm.String(c.Str()).Literal() })))
		return nil
	},
}

// elems returns a copy of the elements of a loaded array cell.
func (a *args) elems(c vm.Cell) []vm.Cell {
	switch c.Kind() {
	case vm.KindNone:
		return []vm.Cell{}
	case vm.KindArray:
		return append([]vm.Cell(nil), c.Array().Elems...)
	}
	a.err = fmt.Errorf("%w: expected array, got %s", vm.ErrTypeMismatch, c.Kind())
	return nil
}

func join(elems []vm.Cell, format func(vm.Cell) string) string {
	parts := make([]string, len(elems))
	for i, c := range elems {
		parts[i] = format(c)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// maxRangeLength bounds the arrays array__range will build.
const maxRangeLength = 1 << 24

// rangeLength counts the values first, first+step, ... that do not pass
// last. It fails for a zero or non-finite step and for counts beyond
// maxRangeLength.
func rangeLength(first, last, step float64) (int, bool) {
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0, false
	}
	span := (last - first) / step
	if math.IsNaN(span) || span > maxRangeLength {
		return 0, false
	}
	if span < 0 {
		return 0, true
	}
	return int(math.Floor(span)) + 1, true
}
