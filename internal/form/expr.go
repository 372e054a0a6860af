package form

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidExpression is returned for expressions outside the supported
// subset: locals, string and boolean literals, ==, ===, !=, !==, !, &&, ||,
// parentheses and the ?: conditional.
var ErrInvalidExpression = errors.New("invalid expression")

// eval evaluates expr over locals. The result is a string or a bool.
func eval(expr string, locals map[string]string) (any, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, locals: locals}
	v, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidExpression, p.toks[p.pos].text, expr)
	}
	return v, nil
}

// truthy follows JavaScript: empty strings and false are falsy.
func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	return false
}

func stringify(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "true"
		}
		return "false"
	}
	s, _ := v.(string)
	return s
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

// operators are matched longest first.
var operators = []string{"===", "!==", "==", "!=", "&&", "||", "!", "?", ":", "(", ")"}

func lex(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'' || c == '"':
			var b strings.Builder
			j := i + 1
			for ; j < len(expr) && expr[j] != c; j++ {
				if expr[j] == '\\' && j+1 < len(expr) {
					j++
				}
				b.WriteByte(expr[j])
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("%w: unterminated string in %q", ErrInvalidExpression, expr)
			}
			toks = append(toks, token{kind: tokString, text: b.String()})
			i = j + 1
		case isIdentStart(c):
			j := i + 1
			for j < len(expr) && (isIdentStart(expr[j]) || (expr[j] >= '0' && expr[j] <= '9')) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: expr[i:j]})
			i = j
		default:
			op := ""
			for _, o := range operators {
				if strings.HasPrefix(expr[i:], o) {
					op = o
					break
				}
			}
			if op == "" {
				return nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidExpression, c, expr)
			}
			toks = append(toks, token{kind: tokOp, text: op})
			i += len(op)
		}
	}
	return toks, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

type parser struct {
	toks   []token
	pos    int
	locals map[string]string
}

func (p *parser) accept(op string) bool {
	if p.pos < len(p.toks) && p.toks[p.pos].kind == tokOp && p.toks[p.pos].text == op {
		p.pos++
		return true
	}
	return false
}

func (p *parser) conditional() (any, error) {
	cond, err := p.or()
	if err != nil || !p.accept("?") {
		return cond, err
	}
	a, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if !p.accept(":") {
		return nil, fmt.Errorf("%w: missing : in conditional", ErrInvalidExpression)
	}
	b, err := p.conditional()
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return a, nil
	}
	return b, nil
}

func (p *parser) or() (any, error) {
	left, err := p.and()
	for err == nil && p.accept("||") {
		var right any
		if right, err = p.and(); err == nil && !truthy(left) {
			left = right
		}
	}
	return left, err
}

func (p *parser) and() (any, error) {
	left, err := p.equality()
	for err == nil && p.accept("&&") {
		var right any
		if right, err = p.equality(); err == nil && truthy(left) {
			left = right
		}
	}
	return left, err
}

func (p *parser) equality() (any, error) {
	left, err := p.unary()
	for err == nil {
		var op string
		for _, o := range []string{"===", "!==", "==", "!="} {
			if p.accept(o) {
				op = o
				break
			}
		}
		if op == "" {
			break
		}
		var right any
		if right, err = p.unary(); err != nil {
			break
		}
		strict := op == "===" || op == "!=="
		equal := stringify(left) == stringify(right)
		if strict {
			_, lb := left.(bool)
			_, rb := right.(bool)
			equal = equal && lb == rb
		}
		left = equal == (op == "===" || op == "==")
	}
	return left, err
}

func (p *parser) unary() (any, error) {
	if p.accept("!") {
		v, err := p.unary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return p.primary()
}

func (p *parser) primary() (any, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("%w: unexpected end", ErrInvalidExpression)
	}
	if p.accept("(") {
		v, err := p.conditional()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("%w: missing )", ErrInvalidExpression)
		}
		return v, nil
	}

	tok := p.toks[p.pos]
	p.pos++
	switch tok.kind {
	case tokString:
		return tok.text, nil
	case tokIdent:
		switch tok.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		v, ok := p.locals[tok.text]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLocal, tok.text)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidExpression, tok.text)
}
