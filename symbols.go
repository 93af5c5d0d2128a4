package calculator

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/zephyrtronium/bigfloat"
)

// SymbolTable maps names to the constants and functions available to an
// expression. Names are case-insensitive. A SymbolTable is only read during
// compilation, so a table which is no longer modified may be shared by any
// number of concurrent compilations.
type SymbolTable struct {
	consts map[string]float64
	funcs  map[string]Func
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		consts: make(map[string]float64),
		funcs:  make(map[string]Func),
	}
}

// DefaultSymbols creates a symbol table holding the standard mathematical
// constants and functions. Each call returns a new table, so the result may be
// modified freely.
func DefaultSymbols() *SymbolTable {
	t := &SymbolTable{
		consts: make(map[string]float64, len(defaultConsts())),
		funcs:  make(map[string]Func, len(globalfuncs)),
	}
	for k, v := range defaultConsts() {
		t.consts[k] = v
	}
	for k, v := range globalfuncs {
		t.funcs[k] = v
	}
	return t
}

// AddConstant sets the value of a named constant. Returns t for chaining.
func (t *SymbolTable) AddConstant(name string, v float64) *SymbolTable {
	t.consts[fold(name)] = v
	return t
}

// AddFunc sets a named function. Passing nil for fn removes the function, so
// that the name may be used for a constant instead. Returns t for chaining.
func (t *SymbolTable) AddFunc(name string, fn Func) *SymbolTable {
	if fn == nil {
		delete(t.funcs, fold(name))
		return t
	}
	t.funcs[fold(name)] = fn
	return t
}

// Constant looks up a named constant.
func (t *SymbolTable) Constant(name string) (float64, bool) {
	v, ok := t.consts[fold(name)]
	return v, ok
}

// Func looks up a named function. The result is nil if there is no such
// function.
func (t *SymbolTable) Func(name string) Func {
	return t.funcs[fold(name)]
}

// Names returns the sorted list of every constant and function name.
func (t *SymbolTable) Names() []string {
	names := make([]string, 0, len(t.consts)+len(t.funcs))
	for k := range t.consts {
		names = append(names, k)
	}
	for k := range t.funcs {
		if _, ok := t.consts[k]; !ok {
			names = append(names, k)
		}
	}
	sortstrs(names)
	return names
}

// Clone creates a copy of t which can be modified independently.
func (t *SymbolTable) Clone() *SymbolTable {
	n := &SymbolTable{
		consts: make(map[string]float64, len(t.consts)),
		funcs:  make(map[string]Func, len(t.funcs)),
	}
	for k, v := range t.consts {
		n.consts[k] = v
	}
	for k, v := range t.funcs {
		n.funcs[k] = v
	}
	return n
}

// fold normalizes a name for lookup.
func fold(name string) string {
	return strings.ToLower(name)
}

// sortstrs sorts a string slice without using package sort because that has
// reflection and allocation problems.
func sortstrs(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// constprec is the precision in bits used to compute constants before they
// are rounded to float64.
const constprec = 128

var (
	constsOnce sync.Once
	consts     map[string]float64
)

// defaultConsts returns the default constants. The map is computed once and
// must not be modified.
func defaultConsts() map[string]float64 {
	constsOnce.Do(func() {
		consts = computeConsts(constprec)
	})
	return consts
}

// computeConsts computes the default constants to prec bits and rounds each
// to the nearest float64.
func computeConsts(prec uint) map[string]float64 {
	f := func(x float64) *big.Float {
		return new(big.Float).SetPrec(prec).SetFloat64(x)
	}
	pi := bigfloat.Pi(new(big.Float).SetPrec(prec))
	tau := new(big.Float).SetPrec(prec).Mul(pi, f(2))
	e := bigfloat.Exp(new(big.Float).SetPrec(prec), f(1))
	sqrt2 := new(big.Float).SetPrec(prec).Sqrt(f(2))
	sqrt5 := new(big.Float).SetPrec(prec).Sqrt(f(5))
	phi := new(big.Float).SetPrec(prec).Add(f(1), sqrt5)
	phi.Quo(phi, f(2))
	ln2 := bigfloat.Log(new(big.Float).SetPrec(prec), f(2))
	ln10 := bigfloat.Log(new(big.Float).SetPrec(prec), f(10))

	r := func(x *big.Float) float64 {
		v, _ := x.Float64()
		return v
	}
	return map[string]float64{
		"pi":      r(pi),
		"π":       r(pi),
		"tau":     r(tau),
		"τ":       r(tau),
		"e":       r(e),
		"phi":     r(phi),
		"φ":       r(phi),
		"sqrt2":   r(sqrt2),
		"ln2":     r(ln2),
		"ln10":    r(ln10),
		"inf":     math.Inf(1),
		"epsilon": math.Nextafter(1, 2) - 1,
	}
}
