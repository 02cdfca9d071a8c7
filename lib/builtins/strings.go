package builtins

import (
	"strings"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

var stringBuiltins = map[string]builtin{
	"string__append": func(a *args) error {
		t := a.str()
		p := a.pointer()
		a.update(p, func(c vm.Cell) vm.Cell {
			return vm.String(c.Str() + t)
		})
		return nil
	},
	"string__concat": func(a *args) error {
		y := a.str()
		x := a.str()
		a.push(vm.String(x + y))
		return nil
	},
	"string__index": func(a *args) error {
		index := a.number()
		s := a.str()
		if a.err != nil {
			return nil
		}
		if !integer(index) || index < 0 || index >= float64(len(s)) {
			return raise(ExceptionStringIndex, "%s", bytecode.FormatNumber(index))
		}
		i := int(index)
		a.push(vm.String(s[i : i+1]))
		return nil
	},
	"string__length": func(a *args) error {
		a.push(vm.Number(float64(len(a.str()))))
		return nil
	},
	"string__substring": func(a *args) error {
		first, firstFromEnd, last, lastFromEnd := a.bounds()
		s := a.str()
		if a.err != nil {
			return nil
		}
		if !integer(first) {
			return raise(ExceptionStringIndex, "%s", bytecode.FormatNumber(first))
		}
		if !integer(last) {
			return raise(ExceptionStringIndex, "%s", bytecode.FormatNumber(last))
		}
		lo, hi := span(len(s), int(first), firstFromEnd, int(last), lastFromEnd)
		a.push(vm.String(s[lo:hi]))
		return nil
	},
	"string__toBytes": func(a *args) error {
		a.push(vm.Bytes([]byte(a.str())))
		return nil
	},
	"string__toString": func(a *args) error {
		a.push(vm.String(a.str()))
		return nil
	},

	"string$find": func(a *args) error {
		t := a.str()
		s := a.str()
		if i := strings.Index(s, t); i >= 0 {
			a.push(vm.NewArray(vm.Number(1), vm.Number(float64(i))))
		} else {
			a.push(vm.NewArray(vm.Number(0)))
		}
		return nil
	},
	"string$lower": func(a *args) error {
		a.push(vm.String(strings.ToLower(a.str())))
		return nil
	},
	"string$upper": func(a *args) error {
		a.push(vm.String(strings.ToUpper(a.str())))
		return nil
	},
	"string$quoted": func(a *args) error {
		a.push(vm.String(vm.String(a.str()).Literal()))
		return nil
	},
	"string$split": func(a *args) error {
		sep := a.str()
		s := a.str()
		parts := strings.Split(s, sep)
		r := make([]vm.Cell, len(parts))
		for i, p := range parts {
			r[i] = vm.String(p)
		}
		a.push(vm.NewArray(r...))
		return nil
	},
	"string$trimCharacters": func(a *args) error {
		trailing := a.str()
		leading := a.str()
		s := a.str()
		a.push(vm.String(strings.TrimRight(strings.TrimLeft(s, leading), trailing)))
		return nil
	},
}
