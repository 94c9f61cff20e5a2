package fuzzy

import (
	"errors"
	"fmt"
	"strings"
)

// node is one element of a parsed rule antecedent.
type node interface {
	eval(d Degrees) float64
	leaves(fn func(variable, term string))
}

// isNode is the leaf "variable IS term".
type isNode struct {
	variable string
	term     string
}

func (n isNode) eval(d Degrees) float64 { return d[n.variable][n.term] }
func (n isNode) leaves(fn func(variable, term string)) { fn(n.variable, n.term) }

// andNode evaluates to the minimum of its operands.
type andNode []node

func (n andNode) eval(d Degrees) float64 {
	v := 1.0
	for _, op := range n {
		v = min(v, op.eval(d))
	}
	return v
}

func (n andNode) leaves(fn func(variable, term string)) {
	for _, op := range n {
		op.leaves(fn)
	}
}

// orNode evaluates to the maximum of its operands.
type orNode []node

func (n orNode) eval(d Degrees) float64 {
	v := 0.0
	for _, op := range n {
		v = max(v, op.eval(d))
	}
	return v
}

func (n orNode) leaves(fn func(variable, term string)) {
	for _, op := range n {
		op.leaves(fn)
	}
}

// parser is a recursive-descent parser over whitespace-separated tokens.
//
//	expr   = and { "OR" and }
//	and    = factor { "AND" factor }
//	factor = "(" expr ")" | ident "IS" ident
//
// Keywords are case-insensitive.
type parser struct {
	toks []string
	pos  int
}

var parenSpacer = strings.NewReplacer("(", " ( ", ")", " ) ")

func parseAntecedent(expr string) (node, error) {
	p := &parser{toks: strings.Fields(parenSpacer.Replace(expr))}
	if len(p.toks) == 0 {
		return nil, errors.New("empty expression")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("unexpected %q at token %d", p.toks[p.pos], p.pos+1)
	}
	return n, nil
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for strings.EqualFold(p.peek(), "OR") {
		p.next()
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return orNode(operands), nil
}

func (p *parser) parseAnd() (node, error) {
	first, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	for strings.EqualFold(p.peek(), "AND") {
		p.next()
		n, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return andNode(operands), nil
}

func (p *parser) parseFactor() (node, error) {
	switch tok := p.next(); {
	case tok == "":
		return nil, errors.New("unexpected end of expression")
	case tok == "(":
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, errors.New("missing closing parenthesis")
		}
		return n, nil
	case !isIdent(tok):
		return nil, fmt.Errorf("unexpected %q", tok)
	default:
		if kw := p.next(); !strings.EqualFold(kw, "IS") {
			return nil, fmt.Errorf("expected IS after %q, got %q", tok, kw)
		}
		term := p.next()
		if !isIdent(term) {
			return nil, fmt.Errorf("expected a term after %q IS", tok)
		}
		return isNode{variable: tok, term: term}, nil
	}
}

func isIdent(tok string) bool {
	switch strings.ToUpper(tok) {
	case "", "(", ")", "AND", "OR", "IS":
		return false
	}
	return true
}
