package calculator

import (
	"strconv"
	"unicode"
)

// ParseOption is an option for parsing.
type ParseOption interface {
	parseOption(parsectx) parsectx
}

// DefaultMaxDepth is the nesting limit used when no MaxDepth option is given.
const DefaultMaxDepth = 256

type (
	depthopt int
	eofopt   struct {
		c  bool
		ws string
	}
)

// parsectx holds general data for parsing. It is also a ParseOption.
type parsectx struct {
	// syms resolves identifiers.
	syms *SymbolTable
	// resv is a reserved parsed node. parsearglist sets this when it parses a
	// single parenthesized term so that the parser can back it out to an
	// implicit multiplication if the function is niladic.
	resv *node
	// wseof is a string containing the whitespace characters that trigger an
	// EOF token from the lexer.
	wseof string
	// ceof indicates whether commas are allowed at the end of an expression.
	ceof bool
	// depth is the current term nesting depth.
	depth int
	// maxdepth is the nesting limit, or 0 for none.
	maxdepth int
	// setdepth indicates that an option set maxdepth.
	setdepth bool
}

// MaxDepth limits how deeply terms may nest, e.g. through brackets, unary
// operators, or chains of exponentiations. Juxtaposed factors also nest, so
// "2 2 2" counts like "2^2^2", while chains of explicit binary operators such
// as "2*2*2" do not. Exceeding the limit is a *DepthError. Zero or a negative value disables the limit. Without this
// option, the limit is DefaultMaxDepth.
func MaxDepth(n int) ParseOption {
	return depthopt(n)
}

func (o depthopt) parseOption(p parsectx) parsectx {
	p.maxdepth = int(o)
	if p.maxdepth < 0 {
		p.maxdepth = 0
	}
	p.setdepth = true
	return p
}

// StopOn tells the parser to treat a list of characters as ending the
// expression. Each rune must be a comma or whitespace codepoint. Whitespace
// does not end an expression where a term is expected, e.g. at the beginning
// of an expression or following an operator or bracket. Commas do not end
// expressions inside bracketed function argument lists.
//
// StopOn overrides the effect of any previous StopOn in the parsing options,
// including in presets. With no arguments, StopOn produces the default
// termination behavior, which is to parse to EOF.
func StopOn(chars ...rune) ParseOption {
	var o eofopt
	v := make([]rune, 0, len(chars))
	have := func(r rune) bool {
		for _, c := range v {
			if r == c {
				return true
			}
		}
		return false
	}
	for _, r := range chars {
		switch {
		case r == ',':
			o.c = true
		case unicode.IsSpace(r):
			if have(r) {
				continue
			}
			v = append(v, r)
		default:
			panic("calculator: cannot stop on " + strconv.QuoteRune(r))
		}
	}
	o.ws = string(v)
	return &o
}

func (o *eofopt) parseOption(p parsectx) parsectx {
	p.ceof = o.c
	p.wseof = o.ws
	return p
}

// ParsingPreset creates a parsing preset that combines options for reuse
// across many calls to Compile. A preset panics when it would change any
// option from the default, but it is safe to apply other options after a
// preset.
func ParsingPreset(opts ...ParseOption) ParseOption {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	return &p
}

func (o *parsectx) parseOption(p parsectx) parsectx {
	if p.wseof != "" || p.ceof || p.setdepth {
		panic("calculator: preset applied to non-default parse config")
	}
	p.wseof = o.wseof
	p.ceof = o.ceof
	p.maxdepth = o.maxdepth
	p.setdepth = o.setdepth
	return p
}
