// Package calculator evaluates calculator expressions to float64 results.
//
// The syntax of expressions is intended to be similar to math you'd write in
// your notes. "2 pi r" is a multiplication of three terms, as is "{2}[pi](r)".
// "-2^2^n" is the same as "-(2^(2^n))", where "a^b" (or "a**b") is
// exponentiation. Names are resolved against a SymbolTable when an expression
// is compiled; DefaultSymbols holds the usual constants, like pi and e, and
// functions, like sqrt and sin.
//
// Arithmetic follows IEEE-754, so "1/0" is +Inf rather than an error. Errors
// from invalid input implement InputError and carry the position of the
// problem; errors during evaluation are *EvalError.
//
// Compiled expressions are immutable, and nothing in the package holds mutable
// global state, so any function here may be called concurrently.
package calculator
