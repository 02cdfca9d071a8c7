package builtins

import (
	"sort"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

var bytesBuiltins = map[string]builtin{
	"bytes__concat": func(a *args) error {
		y := a.bytes()
		x := a.bytes()
		a.push(vm.Bytes(append(x, y...)))
		return nil
	},
	"bytes__decodeToString": func(a *args) error {
		a.push(vm.String(string(a.bytes())))
		return nil
	},
	"bytes__index": func(a *args) error {
		index := a.number()
		b := a.bytes()
		if a.err != nil {
			return nil
		}
		if !integer(index) || index < 0 || index >= float64(len(b)) {
			return raise(ExceptionBytesIndex, "%s", bytecode.FormatNumber(index))
		}
		a.push(vm.Number(float64(b[int(index)])))
		return nil
	},
	"bytes__range": func(a *args) error {
		first, firstFromEnd, last, lastFromEnd := a.bounds()
		b := a.bytes()
		if a.err != nil {
			return nil
		}
		if !integer(first) {
			return raise(ExceptionBytesIndex, "%s", bytecode.FormatNumber(first))
		}
		if !integer(last) {
			return raise(ExceptionBytesIndex, "%s", bytecode.FormatNumber(last))
		}
		lo, hi := span(len(b), int(first), firstFromEnd, int(last), lastFromEnd)
		a.push(vm.Bytes(b[lo:hi]))
		return nil
	},
	"bytes__size": func(a *args) error {
		a.push(vm.Number(float64(len(a.bytes()))))
		return nil
	},
	"bytes__toArray": func(a *args) error {
		b := a.bytes()
		r := make([]vm.Cell, len(b))
		for i, x := range b {
			r[i] = vm.Number(float64(x))
		}
		a.push(vm.NewArray(r...))
		return nil
	},
	"bytes__toString": func(a *args) error {
		a.push(vm.String(vm.Bytes(a.bytes()).Literal()))
		return nil
	},

	"dictionary__keys": func(a *args) error {
		d := a.dictionary()
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		r := make([]vm.Cell, len(keys))
		for i, k := range keys {
			r[i] = vm.String(k)
		}
		a.push(vm.NewArray(r...))
		return nil
	},
	"dictionary__remove": func(a *args) error {
		key := a.str()
		p := a.pointer()
		a.update(p, func(c vm.Cell) vm.Cell {
			if c.Kind() != vm.KindDictionary {
				return c
			}
			delete(c.Dictionary().Entries, key)
			return c
		})
		return nil
	},
	"dictionary__toString__string": func(a *args) error {
		d := a.dictionary()
		a.push(vm.String(vm.NewDictionary(d).Literal()))
		return nil
	},
}
