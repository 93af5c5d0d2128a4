package calculator

import (
	"io"
	"math"
	"strconv"
	"strings"
)

// machine is the state of a single evaluation. Each call to Expr.Eval uses
// its own machine, so evaluations never share mutable state.
type machine struct {
	stack []float64
}

// push pushes a value to the stack.
func (m *machine) push(v float64) {
	m.stack = append(m.stack, v)
}

// pop removes the top from the stack and returns it.
func (m *machine) pop() float64 {
	r := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return r
}

// top is a shortcut to get a pointer to the top element of the stack.
func (m *machine) top() *float64 {
	return &m.stack[len(m.stack)-1]
}

// Eval evaluates the expression. Arithmetic follows IEEE-754: division by zero
// gives an infinity, 0/0 and other invalid operations give NaN, and neither is
// an error. The only errors come from functions reporting failure, in which
// case the error is an *EvalError and the result is zero. Evaluating the same
// expression again gives a bit-identical result.
func (e *Expr) Eval() (float64, error) {
	m := machine{stack: make([]float64, 0, e.height)}
	if err := e.n.eval(&m); err != nil {
		return 0, err
	}
	if len(m.stack) != 1 {
		panic("calculator: inconsistent stack: " + strconv.Itoa(len(m.stack)) + " items (bad AST?)")
	}
	return m.stack[0], nil
}

// eval pushes the node's value to the machine's stack.
func (n *node) eval(m *machine) error {
	switch n.kind {
	case nodeNum, nodeConst:
		m.push(n.val)
	case nodeCall:
		k := len(m.stack)
		for l := n.right; l != nil; l = l.right {
			if err := l.left.eval(m); err != nil {
				return err
			}
		}
		args := m.stack[k:len(m.stack):len(m.stack)]
		r, err := n.fn.Call(args)
		if err != nil {
			return &EvalError{Func: n.name, Err: err}
		}
		m.stack = append(m.stack[:k], r)
	case nodeArg:
		panic("calculator: eval on nodeArg")
	case nodeNeg:
		if err := n.left.eval(m); err != nil {
			return err
		}
		v := m.top()
		*v = -*v
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodeMod, nodePow:
		if err := n.left.eval(m); err != nil {
			return err
		}
		if err := n.right.eval(m); err != nil {
			return err
		}
		r := m.pop()
		l := m.top()
		*l = arith(n.kind, *l, r)
	case nodeNop:
		if err := n.left.eval(m); err != nil {
			return err
		}
	case nodeFact:
		if err := n.left.eval(m); err != nil {
			return err
		}
		v := m.top()
		*v = factorial(*v)
	default:
		panic("calculator: invalid AST node " + n.kind.String())
	}
	return nil
}

// arith applies a binary operator.
func arith(op nodeKind, l, r float64) float64 {
	switch op {
	case nodeAdd:
		return l + r
	case nodeSub:
		return l - r
	case nodeMul:
		return l * r
	case nodeDiv:
		return l / r
	case nodeMod:
		return math.Mod(l, r)
	case nodePow:
		return math.Pow(l, r)
	default:
		panic("calculator: not a binary operator: " + op.String())
	}
}

// Eval is a shortcut to compile an expression against the default symbols and
// return its result. A fresh symbol table is built for each call, so Eval is
// safe to call concurrently. Compilation errors implement InputError;
// evaluation errors are *EvalError.
func Eval(src io.RuneScanner, opts ...ParseOption) (float64, error) {
	a, err := Compile(src, DefaultSymbols(), opts...)
	if err != nil {
		return 0, err
	}
	return a.Eval()
}

// EvalString is a shortcut to compile and evaluate a string expression.
func EvalString(src string, opts ...ParseOption) (float64, error) {
	return Eval(strings.NewReader(src), opts...)
}

// EvalError is an error from a function which failed during evaluation. It
// unwraps to the function's error.
type EvalError struct {
	// Func is the name of the function that failed.
	Func string
	// Err is the error the function returned.
	Err error
}

func (err *EvalError) Error() string {
	return "evaluating " + err.Func + ": " + err.Err.Error()
}

func (err *EvalError) Unwrap() error {
	return err.Err
}
