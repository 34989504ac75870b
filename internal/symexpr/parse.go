package symexpr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads an arithmetic rate-law expression: numbers, identifiers
// (dots allowed, so compartment-qualified species parse as one symbol),
// + - * / ^, parentheses, and the supported unary calls. It never
// evaluates code; unknown call names are rejected.
func Parse(src string) (Expr, error) {
	p := &parser{src: src}
	p.next()
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("symexpr: unexpected %q at offset %d in %q", p.tok.text, p.tok.pos, src)
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	src string
	off int
	tok token
}

func (p *parser) next() {
	for p.off < len(p.src) && (p.src[p.off] == ' ' || p.src[p.off] == '\t') {
		p.off++
	}
	start := p.off
	if p.off >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	c := rune(p.src[p.off])
	switch {
	case unicode.IsDigit(c) || c == '.' && p.off+1 < len(p.src) && unicode.IsDigit(rune(p.src[p.off+1])):
		p.off++
		for p.off < len(p.src) && (unicode.IsDigit(rune(p.src[p.off])) || p.src[p.off] == '.') {
			p.off++
		}
		// Scientific notation.
		if p.off < len(p.src) && (p.src[p.off] == 'e' || p.src[p.off] == 'E') {
			mark := p.off
			p.off++
			if p.off < len(p.src) && (p.src[p.off] == '+' || p.src[p.off] == '-') {
				p.off++
			}
			if p.off < len(p.src) && unicode.IsDigit(rune(p.src[p.off])) {
				for p.off < len(p.src) && unicode.IsDigit(rune(p.src[p.off])) {
					p.off++
				}
			} else {
				p.off = mark
			}
		}
		p.tok = token{kind: tokNum, text: p.src[start:p.off], pos: start}
	case unicode.IsLetter(c) || c == '_':
		p.off++
		for p.off < len(p.src) {
			r := rune(p.src[p.off])
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
				p.off++
				continue
			}
			break
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.off], pos: start}
	case strings.ContainsRune("+-*/^", c):
		p.off++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.off++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.off++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	default:
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	}
}

func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			left = NewAdd(left, right)
		} else {
			left = Sub(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "*" {
			left = NewMul(left, right)
		} else {
			left = Div(left, right)
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewMul(Const(-1), e), nil
	}
	if p.tok.kind == tokOp && p.tok.text == "+" {
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp && p.tok.text == "^" {
		p.next()
		// Right-associative.
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return NewPow(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseAtom() (Expr, error) {
	switch p.tok.kind {
	case tokNum:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("symexpr: bad number %q at offset %d", p.tok.text, p.tok.pos)
		}
		p.next()
		return Const(v), nil
	case tokIdent:
		name := p.tok.text
		p.next()
		if p.tok.kind == tokLParen {
			fn := name
			if fn == "ln" {
				fn = "log"
			}
			if !KnownCall(fn) {
				return nil, fmt.Errorf("symexpr: unknown function %q", name)
			}
			p.next()
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.tok.kind != tokRParen {
				return nil, fmt.Errorf("symexpr: missing ) after %s(", name)
			}
			p.next()
			return NewCall(fn, arg), nil
		}
		return Symbol(name), nil
	case tokLParen:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("symexpr: missing ) at offset %d", p.tok.pos)
		}
		p.next()
		return e, nil
	}
	return nil, fmt.Errorf("symexpr: unexpected %q at offset %d", p.tok.text, p.tok.pos)
}
