package builtins

import (
	"math"

	"github.com/chazu/nex/vm"
)

func unary(fn func(float64) float64) builtin {
	return func(a *args) error {
		a.push(vm.Number(fn(a.number())))
		return nil
	}
}

func binary(fn func(x, y float64) float64) builtin {
	return func(a *args) error {
		y := a.number()
		x := a.number()
		a.push(vm.Number(fn(x, y)))
		return nil
	}
}

var mathBuiltins = map[string]builtin{
	"math$abs":   unary(math.Abs),
	"math$ceil":  unary(math.Ceil),
	"math$floor": unary(math.Floor),
	"math$sqrt":  unary(math.Sqrt),
	"math$trunc": unary(math.Trunc),
	"math$exp":   unary(math.Exp),
	"math$log":   unary(math.Log),
	"math$log10": unary(math.Log10),
	"math$sin":   unary(math.Sin),
	"math$cos":   unary(math.Cos),
	"math$tan":   unary(math.Tan),
	"math$sign":  unary(sign),
	"math$max":   binary(math.Max),
	"math$min":   binary(math.Min),
	"math$hypot": binary(math.Hypot),
	"math$atan2": binary(math.Atan2),
	"math$intdiv": func(a *args) error {
		y := a.number()
		x := a.number()
		if a.err != nil {
			return nil
		}
		if y == 0 {
			return vm.NewException(vm.ExceptionDivideByZero, vm.None)
		}
		a.push(vm.Number(math.Trunc(x / y)))
		return nil
	},
	"math$odd": func(a *args) error {
		n := a.number()
		if a.err != nil {
			return nil
		}
		if !integer(n) {
			return raise(ExceptionValueRange, "odd() requires integer")
		}
		a.push(vm.Boolean(math.Mod(n, 2) != 0))
		return nil
	},
}

// sign is -1, 0 or 1. Zero of either sign maps to 0.
func sign(x float64) float64 {
	if x == 0 {
		return 0
	}
	return math.Copysign(1, x)
}
