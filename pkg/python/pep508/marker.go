// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep508

import (
	"fmt"
	"strings"
)

// Marker is a parsed environment-marker expression, together with the
// original text (which survives into generated output when the expression
// cannot be statically resolved).
//
// The expression is kept as an explicit tree; "and" binds tighter than "or",
// and parentheses group.
type Marker struct {
	Expr Expr
	Text string
}

// Expr is a node in a marker expression tree: Leaf, And, or Or.
type Expr interface {
	markerExpr()
	String() string
}

// Value is one side of a comparison: either an environment variable name or
// a quoted literal.
type Value struct {
	V          string
	IsVariable bool
}

func (v Value) String() string {
	if v.IsVariable {
		return v.V
	}
	return `"` + v.V + `"`
}

// Leaf is a single comparison.
type Leaf struct {
	LHS Value
	Op  string
	RHS Value
}

// And is a conjunction of two or more nodes.
type And struct {
	Children []Expr
}

// Or is a disjunction of two or more nodes.
type Or struct {
	Children []Expr
}

func (Leaf) markerExpr() {}
func (And) markerExpr()  {}
func (Or) markerExpr()   {}

func (l Leaf) String() string {
	return fmt.Sprintf("%s %s %s", l.LHS, l.Op, l.RHS)
}

func joinChildren(children []Expr, op string) string {
	strs := make([]string, 0, len(children))
	for _, child := range children {
		str := child.String()
		if _, isOr := child.(Or); isOr {
			str = "(" + str + ")"
		}
		strs = append(strs, str)
	}
	return strings.Join(strs, " "+op+" ")
}

func (a And) String() string { return joinChildren(a.Children, "and") }
func (o Or) String() string  { return joinChildren(o.Children, "or") }

// ParseMarker parses an environment-marker expression.
func ParseMarker(str string) (*Marker, error) {
	toks, err := tokenizeMarker(str)
	if err != nil {
		return nil, fmt.Errorf("pep508.ParseMarker: %w", err)
	}
	p := &markerParser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("pep508.ParseMarker: %w", err)
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("pep508.ParseMarker: trailing garbage at %q", p.toks[p.pos].Str)
	}
	return &Marker{
		Expr: expr,
		Text: strings.TrimSpace(str),
	}, nil
}

// Tokenization //////////////////////////////////////////////////////////////

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	Kind tokenKind
	Str  string
}

func isIdentRune(r byte) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') ||
		('0' <= r && r <= '9') || r == '_' || r == '.'
}

func tokenizeMarker(str string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(str) {
		c := str[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(str[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string: %s", str[i:])
			}
			toks = append(toks, token{tokString, str[i+1 : i+1+end]})
			i += end + 2
		case c == '<' || c == '>' || c == '=' || c == '!' || c == '~':
			j := i
			for j < len(str) && (str[j] == '<' || str[j] == '>' || str[j] == '=' ||
				str[j] == '!' || str[j] == '~') {
				j++
			}
			op := str[i:j]
			switch op {
			case "<", ">", "<=", ">=", "==", "!=", "~=", "===":
				toks = append(toks, token{tokOp, op})
			default:
				return nil, fmt.Errorf("invalid operator: %q", op)
			}
			i = j
		case isIdentRune(c):
			j := i
			for j < len(str) && isIdentRune(str[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, str[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character: %q", string(c))
		}
	}
	return toks, nil
}

// Parsing ///////////////////////////////////////////////////////////////////

type markerParser struct {
	toks []token
	pos  int
}

func (p *markerParser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

// parseOr parses "and_expr (or and_expr)*".
func (p *markerParser) parseOr() (Expr, error) {
	child, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Expr{child}
	for {
		tok := p.peek()
		if tok == nil || tok.Kind != tokIdent || tok.Str != "or" {
			break
		}
		p.pos++
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return Or{Children: children}, nil
}

// parseAnd parses "atom (and atom)*".
func (p *markerParser) parseAnd() (Expr, error) {
	child, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	children := []Expr{child}
	for {
		tok := p.peek()
		if tok == nil || tok.Kind != tokIdent || tok.Str != "and" {
			break
		}
		p.pos++
		child, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return And{Children: children}, nil
}

// parseAtom parses "'(' or_expr ')'" or a single comparison.
func (p *markerParser) parseAtom() (Expr, error) {
	tok := p.peek()
	if tok == nil {
		return nil, fmt.Errorf("unexpected end of marker")
	}
	if tok.Kind == tokLParen {
		p.pos++
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		tok = p.peek()
		if tok == nil || tok.Kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return expr, nil
	}
	return p.parseLeaf()
}

// parseLeaf parses "value op value", where op may also be the membership
// tests "in" and "not in" (which parse fine, but never evaluate statically).
func (p *markerParser) parseLeaf() (Expr, error) {
	lhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok == nil {
		return nil, fmt.Errorf("expected operator after %q", lhs.V)
	}
	var op string
	switch {
	case tok.Kind == tokOp:
		op = tok.Str
		p.pos++
	case tok.Kind == tokIdent && tok.Str == "in":
		op = "in"
		p.pos++
	case tok.Kind == tokIdent && tok.Str == "not":
		p.pos++
		tok = p.peek()
		if tok == nil || tok.Kind != tokIdent || tok.Str != "in" {
			return nil, fmt.Errorf(`expected "in" after "not"`)
		}
		op = "not in"
		p.pos++
	default:
		return nil, fmt.Errorf("expected operator, got %q", tok.Str)
	}
	rhs, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return Leaf{LHS: lhs, Op: op, RHS: rhs}, nil
}

func (p *markerParser) parseValue() (Value, error) {
	tok := p.peek()
	if tok == nil {
		return Value{}, fmt.Errorf("expected a value, got end of marker")
	}
	switch tok.Kind {
	case tokIdent:
		if tok.Str == "and" || tok.Str == "or" || tok.Str == "in" || tok.Str == "not" {
			return Value{}, fmt.Errorf("expected a value, got keyword %q", tok.Str)
		}
		p.pos++
		return Value{V: tok.Str, IsVariable: true}, nil
	case tokString:
		p.pos++
		return Value{V: tok.Str}, nil
	default:
		return Value{}, fmt.Errorf("expected a value, got %q", tok.Str)
	}
}
