package calculator_test

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/expr-lang/expr"

	"github.com/zephyrtronium/calculator"
)

func TestLiteralRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vals := []float64{0, 1, 0.1, 123456789, 1e300, 5e-324, math.MaxFloat64, math.SmallestNonzeroFloat64}
	for i := 0; i < 200; i++ {
		x := math.Float64frombits(rng.Uint64() &^ (1 << 63))
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		vals = append(vals, x, rng.Float64(), float64(rng.Int63()))
	}
	for _, x := range vals {
		src := strconv.FormatFloat(x, 'g', -1, 64)
		r, err := calculator.EvalString(src)
		if err != nil {
			t.Errorf("%q failed: %v", src, err)
			continue
		}
		if r != x {
			t.Errorf("%q evaluated to %v", src, r)
		}
		r, err = calculator.EvalString("-" + src)
		if err != nil || r != -x {
			t.Errorf("-%q evaluated to %v, %v", src, r, err)
		}
	}
}

func TestBinaryOps(t *testing.T) {
	ops := []struct {
		op string
		f  func(a, b float64) float64
	}{
		{"+", func(a, b float64) float64 { return a + b }},
		{"-", func(a, b float64) float64 { return a - b }},
		{"*", func(a, b float64) float64 { return a * b }},
		{"/", func(a, b float64) float64 { return a / b }},
		{"%", math.Mod},
		{"^", math.Pow},
	}
	rng := rand.New(rand.NewSource(2))
	vals := []float64{0, 1, 2, 0.5, 3.75, 1e10, 1e-10}
	for i := 0; i < 20; i++ {
		vals = append(vals, rng.Float64()*1000, rng.ExpFloat64())
	}
	for _, op := range ops {
		for i := 0; i < 200; i++ {
			a, b := vals[rng.Intn(len(vals))], vals[rng.Intn(len(vals))]
			src := strconv.FormatFloat(a, 'g', -1, 64) + " " + op.op + " " + strconv.FormatFloat(b, 'g', -1, 64)
			r, err := calculator.EvalString(src)
			if err != nil {
				t.Errorf("%q failed: %v", src, err)
				continue
			}
			if want := op.f(a, b); !same(r, want) {
				t.Errorf("%q evaluated to %v, want %v", src, r, want)
			}
		}
	}
}

// TestExprLang checks simple expressions against an independent evaluator.
func TestExprLang(t *testing.T) {
	srcs := []string{
		"2+3*4",
		"(2+3)*4",
		"7/2",
		"2^10",
		"1.5*4-3",
		"10-4-3",
		"100/10/5",
		"-3+5",
		"2*(3+4)*5",
		"7 % 3",
		"0.1+0.2",
		"1/3",
		"2.5*2.5*2.5",
		"(1+2)*(3+4)/(5-6)",
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			v, err := expr.Eval(src, nil)
			if err != nil {
				t.Fatalf("expr failed on %q: %v", src, err)
			}
			var want float64
			switch v := v.(type) {
			case int:
				want = float64(v)
			case float64:
				want = v
			default:
				t.Fatalf("expr gave %T for %q", v, src)
			}
			r, err := calculator.EvalString(src)
			if err != nil {
				t.Fatalf("%q failed: %v", src, err)
			}
			if r != want {
				t.Errorf("%q evaluated to %v, expr gives %v", src, r, want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		src string
		ok  bool
	}{
		{"2+2", true},
		{"1/0", true},
		{"sqrt(-1)", true},
		{"2 pi r", false},
		{"2+", false},
		{"", false},
		{"(1", false},
		{"max()", false},
	}
	for _, c := range cases {
		if got := calculator.Valid(c.src); got != c.ok {
			t.Errorf("Valid(%q) = %t, want %t", c.src, got, c.ok)
		}
	}
}

func TestPreview(t *testing.T) {
	cases := []struct {
		src string
		r   float64
		ok  bool
	}{
		{"2*3", 6, true},
		{"2*3+", 6, true},
		{"2*3 + ", 6, true},
		{"2**", 2, true},
		{"10÷", 10, true},
		{"1+-", 1, true},
		{"3!+", 6, true},
		{"2pi×", 2 * math.Pi, true},
		{"(1+2", 0, false},
		{"", 0, false},
		{"+", 0, false},
	}
	for _, c := range cases {
		r, err := calculator.Preview(c.src)
		if (err == nil) != c.ok {
			t.Errorf("Preview(%q) gave error %v", c.src, err)
			continue
		}
		if c.ok && r != c.r {
			t.Errorf("Preview(%q) = %v, want %v", c.src, r, c.r)
		}
	}
}
