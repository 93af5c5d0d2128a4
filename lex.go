package calculator

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type lexToken struct {
	text string
	kind tokenKind
	pos  int
}

func (t lexToken) String() string {
	return t.kind.String() + ":" + t.text + "@" + strconv.Itoa(t.pos)
}

type tokenKind int

const (
	tokenNone tokenKind = iota
	// tokenEOF indicates the end of the input.
	tokenEOF
	// tokenNum is a decimal literal or ∞.
	tokenNum
	// tokenIdent is a constant or function name.
	tokenIdent
	// tokenOp is an operator.
	tokenOp
	// tokenOpen is an open bracket, e.g. (.
	tokenOpen
	// tokenClose is a close bracket, e.g. ).
	tokenClose
	// tokenSep is the function arguments separator ,.
	tokenSep
)

//go:generate stringer -type=tokenKind -trimprefix=token

// Operators contains the runes which are considered to be prefix or infix
// operators. The two-rune operator ** is an alternate spelling of ^.
const Operators = "+-*/^%×÷"

// PostfixOperators contains the runes which are operators following their
// operand. ! is the factorial.
const PostfixOperators = "!"

// OpenBrackets and CloseBrackets contain the runes which group expressions.
// The parser checks that a bracket in byte position k in OpenBrackets is
// matched with the bracket in byte position k in ClosedBrackets.
const (
	OpenBrackets  = "([{"
	CloseBrackets = ")]}"
)

// byteidcs maps each byte index of a rune in s to that rune as a string.
func byteidcs(s string) []string {
	v := make([]string, len(s))
	for i, r := range s {
		v[i] = string(r)
	}
	return v
}

var (
	operstrs      = byteidcs(Operators)
	openbrackets  = byteidcs(OpenBrackets)
	closebrackets = byteidcs(CloseBrackets)
)

type lexer struct {
	src io.RuneScanner
	// back holds unread runes, most recent last. The lexer always reads them
	// again before it finishes a token, so none remain when an expression
	// ends successfully.
	back []rune
	buf  strings.Builder
	// text is every rune consumed so far, for Expr.Source.
	text []rune
	rune int
	p    lexToken
	eof  bool
}

func lex(src io.RuneScanner) *lexer {
	return &lexer{
		src:  src,
		rune: 1,
	}
}

// push unreads a token so that it is the next token returned from next. Panics
// if there is already a pushed token.
func (l *lexer) push(tok lexToken) {
	if l.p.kind != tokenNone {
		panic("calculator: double push")
	}
	l.p = tok
}

// must scans the pushed token. Panics if there is no pushed token.
func (l *lexer) must() lexToken {
	tok := l.p
	if tok.kind == tokenNone {
		panic("calculator: no pushed token")
	}
	l.p = lexToken{}
	return tok
}

// readRune reads a rune from the src and updates the lexer's position info.
// Bytes which are not valid UTF-8 produce an *EncodingError.
func (l *lexer) readRune() (r rune, err error) {
	if k := len(l.back); k > 0 {
		r = l.back[k-1]
		l.back = l.back[:k-1]
		l.rune++
		l.text = append(l.text, r)
		return r, nil
	}
	r, sz, err := l.src.ReadRune()
	if sz > 0 {
		l.rune++
		l.text = append(l.text, r)
	}
	if err == nil && r == utf8.RuneError && sz == 1 {
		return r, &EncodingError{Col: l.rune - 1}
	}
	return r, err
}

// unreadRune unreads the last rune read and updates the lexer's position
// info. Any number of runes may be unread.
func (l *lexer) unreadRune() {
	k := len(l.text) - 1
	l.back = append(l.back, l.text[k])
	l.rune--
	l.text = l.text[:k]
}

// source returns the text consumed so far, without surrounding whitespace.
func (l *lexer) source() string {
	return strings.TrimSpace(string(l.text))
}

// next scans the next token from the input. The first time EOF is encountered
// before any non-whitespace characters, the result is an EOF token with a nil
// error. Subsequent times, if the EOF token is not pushed, the result is an
// empty token with io.EOF. Whitespace runes in wseof are treated as EOF.
func (l *lexer) next(wseof string) (lexToken, error) {
	if l.p.kind != tokenNone {
		tok := l.p
		l.p = lexToken{}
		return tok, nil
	}
	if l.eof {
		return lexToken{}, io.EOF
	}
	defer l.buf.Reset()
	tok := lexToken{pos: l.rune}
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				tok.kind = tokenEOF
				l.eof = true
				return tok, nil
			}
			return tok, err
		}
		switch {
		case unicode.IsSpace(r):
			if strings.ContainsRune(wseof, r) {
				tok.kind = tokenEOF
				l.eof = true
				return tok, nil
			}
			tok.pos++
			continue
		case '0' <= r && r <= '9', r == '.':
			l.unreadRune()
			if err := l.scanNum(); err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			tok.kind = tokenNum
			return tok, nil
		case r == '_', unicode.IsLetter(r):
			l.unreadRune()
			if err := l.scanIdent(); err != nil {
				return tok, err
			}
			tok.text = l.buf.String()
			tok.kind = tokenIdent
			return tok, nil
		case r == ',':
			tok.text = ","
			tok.kind = tokenSep
			return tok, nil
		case r == '∞':
			tok.text = "∞"
			tok.kind = tokenNum
			return tok, nil
		case r == '!':
			tok.text = "!"
			tok.kind = tokenOp
			return tok, nil
		case r == '*':
			tok.text = "*"
			tok.kind = tokenOp
			s, err := l.readRune()
			switch {
			case err == nil && s == '*':
				tok.text = "**"
			case err == nil:
				l.unreadRune()
			case !errors.Is(err, io.EOF):
				return tok, err
			}
			return tok, nil
		default:
			if k := strings.IndexRune(Operators, r); k >= 0 {
				tok.text = operstrs[k]
				tok.kind = tokenOp
				return tok, nil
			}
			if k := strings.IndexRune(OpenBrackets, r); k >= 0 {
				tok.text = openbrackets[k]
				tok.kind = tokenOpen
				return tok, nil
			}
			if k := strings.IndexRune(CloseBrackets, r); k >= 0 {
				tok.text = closebrackets[k]
				tok.kind = tokenClose
				return tok, nil
			}
			// Write the rune so that it shows up in the error message.
			l.buf.WriteRune(r)
			return tok, l.error("")
		}
	}
}

// numState is the part of a decimal literal being scanned.
type numState int8

const (
	numInt     numState = iota // mantissa digits before any point
	numFrac                    // mantissa digits after the point
	numExpMark                 // just after e or E
	numExpSign                 // just after the exponent's sign
	numExp                     // exponent digits
)

// scanNum scans a decimal literal into the buffer. The literal ends at
// whitespace, an operator, a bracket, a separator, or ∞, or at a letter which
// cannot continue it, so that 2pi lexes as 2 and pi. An e or E continues the
// literal only as an exponent, i.e. followed by a digit or a sign and a digit.
func (l *lexer) scanNum() error {
	st := numInt
	mant := false
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if (r == '+' || r == '-') && st == numExpMark {
			st = numExpSign
			l.buf.WriteRune(r)
			continue
		}
		if unicode.IsSpace(r) || strings.ContainsRune(Operators+PostfixOperators+OpenBrackets+CloseBrackets+",∞", r) {
			l.unreadRune()
			break
		}
		if (r == 'e' || r == 'E') && mant && st <= numFrac {
			exp, err := l.exponentFollows()
			if err != nil {
				return err
			}
			if exp {
				l.buf.WriteRune(r)
				st = numExpMark
				continue
			}
		}
		if mant && (r == '_' || unicode.IsLetter(r)) {
			l.unreadRune()
			break
		}
		l.buf.WriteRune(r)
		switch {
		case '0' <= r && r <= '9':
			switch st {
			case numInt, numFrac:
				mant = true
			default:
				st = numExp
			}
		case r == '.' && st == numInt:
			st = numFrac
		default:
			return l.error("number")
		}
	}
	if !mant || st == numExpMark || st == numExpSign {
		return l.error("number")
	}
	return nil
}

// exponentFollows reports whether the runes after an exponent marker are a
// digit or a sign and a digit. It unreads everything it reads.
func (l *lexer) exponentFollows() (bool, error) {
	r, err := l.readRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	if r != '+' && r != '-' {
		l.unreadRune()
		return '0' <= r && r <= '9', nil
	}
	d, err := l.readRune()
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.unreadRune()
			return false, nil
		}
		return false, err
	}
	l.unreadRune()
	l.unreadRune()
	return '0' <= d && d <= '9', nil
}

func (l *lexer) scanIdent() error {
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// next unreads the rune that decides ident scanning before
				// calling scanIdent, so we have scanned at least one rune.
				return nil
			}
			return err
		}
		switch {
		case r == '_', r == '.', unicode.IsLetter(r), unicode.IsDigit(r):
			l.buf.WriteRune(r)
		default:
			l.unreadRune()
			return nil
		}
	}
}

func (l *lexer) error(kind string) error {
	return &LexError{
		Text: l.buf.String(),
		Kind: kind,
		Col:  l.rune - 1,
	}
}

// LexError indicates an invalid token. It implements InputError.
type LexError struct {
	// Text is the token the lexer was scanning when the invalid rune was
	// encountered, plus the invalid rune.
	Text string
	// Kind is the type of token the lexer was scanning. This may be "number"
	// or the empty string (if a token kind hadn't been decided).
	Kind string
	// Col is the position of the rune that made the token invalid.
	Col int
}

func (err *LexError) Error() string {
	pos := "column " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + err.Text
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + err.Text
}

func (err *LexError) Pos() int {
	return err.Col
}

// EncodingError indicates input that is not valid UTF-8. It implements
// InputError.
type EncodingError struct {
	// Col is the position of the invalid byte, counting each invalid byte as
	// one rune.
	Col int
}

func (err *EncodingError) Error() string {
	return errpos(err.Col, "invalid UTF-8 in input")
}

func (err *EncodingError) Pos() int {
	return err.Col
}
