package calculator

import (
	"math"
	"testing"
)

func TestDefaultConsts(t *testing.T) {
	cases := []struct {
		name string
		v    float64
	}{
		{"pi", math.Pi},
		{"π", math.Pi},
		{"tau", 2 * math.Pi},
		{"τ", 2 * math.Pi},
		{"e", math.E},
		{"phi", math.Phi},
		{"φ", math.Phi},
		{"sqrt2", math.Sqrt2},
		{"ln2", math.Ln2},
		{"ln10", math.Ln10},
		{"inf", math.Inf(1)},
		{"epsilon", 0x1p-52},
	}
	syms := DefaultSymbols()
	for _, c := range cases {
		v, ok := syms.Constant(c.name)
		if !ok {
			t.Errorf("no constant %q", c.name)
			continue
		}
		if v != c.v {
			t.Errorf("%s = %v, want %v", c.name, v, c.v)
		}
	}
	if len(defaultConsts()) != len(cases) {
		t.Errorf("%d default constants but %d cases", len(defaultConsts()), len(cases))
	}
}

func TestSymbolTable(t *testing.T) {
	syms := NewSymbolTable()
	if names := syms.Names(); len(names) != 0 {
		t.Errorf("new table has names %q", names)
	}
	syms.AddConstant("Rate", 0.25).AddFunc("Double", Monadic(func(x float64) float64 { return 2 * x }))
	if v, ok := syms.Constant("RATE"); !ok || v != 0.25 {
		t.Errorf("RATE = %v, %t", v, ok)
	}
	if syms.Func("double") == nil {
		t.Error("no function double")
	}
	if _, ok := syms.Constant("double"); ok {
		t.Error("double is a constant")
	}
	if syms.Func("rate") != nil {
		t.Error("rate is a function")
	}
	names := syms.Names()
	if len(names) != 2 || names[0] != "double" || names[1] != "rate" {
		t.Errorf("wrong names: %q", names)
	}

	c := syms.Clone()
	c.AddConstant("rate", 0.5).AddFunc("double", nil)
	if v, _ := syms.Constant("rate"); v != 0.25 {
		t.Errorf("clone modified original rate to %v", v)
	}
	if syms.Func("double") == nil {
		t.Error("clone removed original double")
	}
	if c.Func("double") != nil {
		t.Error("clone still has double")
	}
}

func TestDefaultSymbolsIndependent(t *testing.T) {
	a := DefaultSymbols()
	a.AddConstant("pi", 3).AddFunc("sqrt", nil)
	b := DefaultSymbols()
	if v, _ := b.Constant("pi"); v != math.Pi {
		t.Errorf("pi changed to %v", v)
	}
	if b.Func("sqrt") == nil {
		t.Error("sqrt removed from defaults")
	}
}

func TestNamesUnique(t *testing.T) {
	syms := NewSymbolTable().AddConstant("x", 1).AddFunc("x", Monadic(math.Abs))
	if names := syms.Names(); len(names) != 1 || names[0] != "x" {
		t.Errorf("wrong names: %q", names)
	}
}
