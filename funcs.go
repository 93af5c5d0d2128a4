package calculator

import (
	"math"
)

// Func is a function from reals to reals.
type Func interface {
	// Call evaluates the function. The function arguments are passed in args,
	// which has a length for which CanCall returned true. Call may modify the
	// elements of args but must not retain the slice. Results outside the
	// function's domain should be NaN rather than an error; an error aborts
	// the evaluation and is reported as an *EvalError.
	Call(args []float64) (float64, error)

	// CanCall returns whether the function can be called with n arguments.
	// This controls how the expression parser handles instances of this
	// function:
	//
	// 	1.	If a bracketed list of n > 0 expressions follows a function, the
	//		parser treats it as an argument list if CanCall(n). (If n is 1 and
	//		!CanCall(1) and CanCall(0), then the list is a multiplication;
	//		otherwise, it is rejected.)
	//
	// 	2.	If a bare term follows a function and CanCall(1), then the parser
	//		treats the term as an argument to the function. E.g., "exp x" is
	//		parsed as "exp(x)". (If !CanCall(1), then it is a multiplication.)
	CanCall(n int) bool
}

var globalfuncs = map[string]Func{
	"exp":   Monadic(math.Exp),
	"ln":    Monadic(math.Log),
	"log":   logfn{},
	"log2":  Monadic(math.Log2),
	"log10": Monadic(math.Log10),
	"sqrt":  Monadic(math.Sqrt),
	"cbrt":  Monadic(math.Cbrt),
	"abs":   Monadic(math.Abs),

	"cos":   Monadic(math.Cos),
	"sin":   Monadic(math.Sin),
	"tan":   Monadic(math.Tan),
	"acos":  Monadic(math.Acos),
	"asin":  Monadic(math.Asin),
	"atan":  Monadic(math.Atan),
	"atan2": Dyadic(math.Atan2),
	"cosh":  Monadic(math.Cosh),
	"sinh":  Monadic(math.Sinh),
	"tanh":  Monadic(math.Tanh),
	"acosh": Monadic(math.Acosh),
	"asinh": Monadic(math.Asinh),
	"atanh": Monadic(math.Atanh),

	"floor": Monadic(math.Floor),
	"ceil":  Monadic(math.Ceil),
	"round": Monadic(math.Round),
	"trunc": Monadic(math.Trunc),
	"sign":  Monadic(sign),
	"fact":  Monadic(factorial),
	"gamma": Monadic(math.Gamma),

	"min":   Variadic(1, minimum),
	"max":   Variadic(1, maximum),
	"hypot": Dyadic(math.Hypot),
	"pow":   Dyadic(math.Pow),
	"mod":   Dyadic(math.Mod),
}

// DefaultFuncs returns the names of the functions in DefaultSymbols.
func DefaultFuncs() []string {
	names := make([]string, 0, len(globalfuncs))
	for k := range globalfuncs {
		names = append(names, k)
	}
	sortstrs(names)
	return names
}

type niladic struct {
	f func() float64
}

func (n niladic) Call(args []float64) (float64, error) {
	return n.f(), nil
}

func (n niladic) CanCall(k int) bool {
	return k == 0
}

// Niladic wraps a function of zero variables into a Func.
func Niladic(f func() float64) Func {
	return niladic{f}
}

type monadic struct {
	f func(float64) float64
}

func (m monadic) Call(args []float64) (float64, error) {
	return m.f(args[0]), nil
}

func (m monadic) CanCall(n int) bool {
	return n == 1
}

// Monadic wraps a function of one variable into a Func.
func Monadic(f func(float64) float64) Func {
	return monadic{f}
}

type dyadic struct {
	f func(x, y float64) float64
}

func (d dyadic) Call(args []float64) (float64, error) {
	return d.f(args[0], args[1]), nil
}

func (d dyadic) CanCall(n int) bool {
	return n == 2
}

// Dyadic wraps a function of two variables into a Func. Calls always need
// brackets, e.g. "atan2(y, x)".
func Dyadic(f func(x, y float64) float64) Func {
	return dyadic{f}
}

type variadic struct {
	min int
	f   func([]float64) float64
}

func (v variadic) Call(args []float64) (float64, error) {
	return v.f(args), nil
}

func (v variadic) CanCall(n int) bool {
	return n >= v.min
}

// Variadic wraps a function of at least min variables into a Func.
func Variadic(min int, f func([]float64) float64) Func {
	return variadic{min, f}
}

// logfn is the common logarithm, or the logarithm to a given base when called
// with two arguments as log(x, base).
type logfn struct{}

func (logfn) Call(args []float64) (float64, error) {
	if len(args) == 1 {
		return math.Log10(args[0]), nil
	}
	switch args[1] {
	case 2:
		return math.Log2(args[0]), nil
	case 10:
		return math.Log10(args[0]), nil
	}
	return math.Log(args[0]) / math.Log(args[1]), nil
}

func (logfn) CanCall(n int) bool {
	return n == 1 || n == 2
}

// factorial extends n! to the reals as Γ(x+1). Integers up to 170, the
// largest with a finite factorial, are multiplied out so that small
// factorials are exact.
func factorial(x float64) float64 {
	if x >= 0 && x <= 170 && x == math.Trunc(x) {
		r := 1.0
		for k := 2.0; k <= x; k++ {
			r *= k
		}
		return r
	}
	return math.Gamma(x + 1)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		// Zero keeps its sign and NaN stays NaN.
		return x
	}
}

func minimum(v []float64) float64 {
	r := v[0]
	for _, x := range v[1:] {
		r = math.Min(r, x)
	}
	return r
}

func maximum(v []float64) float64 {
	r := v[0]
	for _, x := range v[1:] {
		r = math.Max(r, x)
	}
	return r
}
