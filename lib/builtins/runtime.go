package builtins

import (
	"strconv"

	"github.com/chazu/nex/pkg/bytecode"
	"github.com/chazu/nex/vm"
)

func runtimeBuiltins(o Options) map[string]builtin {
	str := func(a *args) error {
		a.push(vm.String(bytecode.FormatNumber(a.number())))
		return nil
	}
	return map[string]builtin{
		"str":              str,
		"number__toString": str,
		"num": func(a *args) error {
			s := a.str()
			if a.err != nil {
				return nil
			}
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return raise(ExceptionValueRange, "num() argument not a number")
			}
			a.push(vm.Number(n))
			return nil
		},
		"boolean__toString": func(a *args) error {
			a.push(vm.String(vm.Boolean(a.boolean()).Literal()))
			return nil
		},

		"runtime$assertionsEnabled": func(a *args) error {
			a.push(vm.Boolean(o.Assertions))
			return nil
		},
		"runtime$setRecursionLimit": func(a *args) error {
			n := a.number()
			if a.err != nil {
				return nil
			}
			if !integer(n) || n < 1 {
				return raise(ExceptionInvalidValue, "recursion limit: %s", bytecode.FormatNumber(n))
			}
			a.m.SetRecursionLimit(int(n))
			return nil
		},

		"sys$exit": func(a *args) error {
			n := a.number()
			if a.err != nil {
				return nil
			}
			if !integer(n) || n < 0 || n > 255 {
				return raise(ExceptionInvalidValue, "sys.exit invalid parameter: %s", bytecode.FormatNumber(n))
			}
			return &vm.ExitError{Code: int(n)}
		},

		"time$now": func(a *args) error {
			a.push(vm.Number(float64(o.Now().Unix())))
			return nil
		},
	}
}
