package calculator

import (
	"strings"
)

// node is a node in the abstract syntax tree of an expression. Nodes are never
// modified once parsing finishes.
type node struct {
	kind nodeKind

	// name is the literal text of a number, the name of a constant or
	// function, or the separator preceding an argument.
	name string
	// val is the value of a number or constant, resolved during parsing.
	val float64
	fn  Func

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum   // push val
	nodeConst // push val, which was looked up by name

	nodeCall // fn is Func to call, right is link to nodeArg unless niladic
	nodeArg  // name is "" or ",", eval left, right is link to next arg

	nodeNeg // evaluate left, then negate
	nodeAdd // evaluate left, add right
	nodeSub // evaluate left, sub right
	nodeMul // evaluate left, mul right
	nodeDiv // evaluate left, div by right
	nodeMod // evaluate left, remainder by right
	nodePow // evaluate left, exp by right
	nodeNop // evaluate left

	nodeFact // evaluate left, then factorial
)

//go:generate stringer -type=nodeKind -trimprefix=node

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b, false, false)
	return b.String()
}

// opsyms holds the plain and alternate spellings of each operator.
var opsyms = map[nodeKind][2]string{
	nodeAdd: {" + ", " + "},
	nodeSub: {" - ", " - "},
	nodeMul: {" * ", " × "},
	nodeDiv: {" / ", " ÷ "},
	nodeMod: {" % ", " % "},
	nodePow: {" ^ ", " ^ "},
	nodeNeg: {"-", "-"},
	nodeNop: {"+", "+"},
}

func brackets(square bool) (l, r byte) {
	if square {
		return '[', ']'
	}
	return '(', ')'
}

// fmt writes n in fully bracketed form, alternating between round and square
// brackets at each level. With alt, operators use their alternate spellings.
func (n *node) fmt(b *strings.Builder, square, alt bool) {
	l, r := brackets(square)
	b.WriteByte(l)
	defer b.WriteByte(r)
	k := 0
	if alt {
		k = 1
	}
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b, square, alt)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b, square, alt)
		}
		b.WriteByte('$')
	case nodeNum, nodeConst:
		b.WriteString(n.name)
	case nodeCall:
		b.WriteString(n.name)
		n.fmtargs(b, !square, alt)
	case nodeArg:
		// Args usually only appear inside calls, which are handled by fmtargs.
		b.WriteByte(':')
		n.left.fmt(b, !square, alt)
		if n.right != nil {
			n.right.fmt(b, !square, alt)
		}
	case nodeNeg, nodeNop:
		b.WriteString(opsyms[n.kind][k])
		n.left.fmt(b, !square, alt)
	case nodeFact:
		n.left.fmt(b, !square, alt)
		b.WriteByte('!')
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodeMod, nodePow:
		n.left.fmt(b, !square, alt)
		b.WriteString(opsyms[n.kind][k])
		n.right.fmt(b, !square, alt)
	default:
		panic("calculator: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}

// fmtargs writes the argument list of a call node.
func (n *node) fmtargs(b *strings.Builder, square, alt bool) {
	l, r := brackets(square)
	b.WriteByte(l)
	defer b.WriteByte(r)
	sep := ""
	for arg := n.right; arg != nil; arg = arg.right {
		if arg.kind != nodeArg {
			// Malformed list. Show the stray node.
			b.WriteString("***")
			arg.fmt(b, !square, alt)
			return
		}
		b.WriteString(sep)
		arg.left.fmt(b, !square, alt)
		sep = ", "
	}
}

// depth returns the height of the tree rooted at n.
func (n *node) depth() int {
	if n == nil {
		return 0
	}
	l, r := n.left.depth(), n.right.depth()
	if r > l {
		l = r
	}
	return l + 1
}
