package tree

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Condition strings compare metrics against numeric constants and combine
// comparisons with && and ||, e.g. "score_fuzz > 0.5 && score_sim <= 0.5".
// Parentheses group subexpressions; && binds tighter than ||. This is the
// whole grammar - conditions never call functions or reference other
// conditions, which keeps evaluation total and side-effect free.

// EvalCondition evaluates a condition string against per-metric values.
// Metrics absent from values evaluate as 0. A malformed condition returns
// ErrInvalidExpression; it is never treated as false, so authoring mistakes
// cannot silently select a default branch.
func EvalCondition(condition string, values map[string]float64) (bool, error) {
	expr, err := parseCondition(condition)
	if err != nil {
		return false, err
	}
	return expr.eval(values), nil
}

// condExpr is a parsed condition tree.
type condExpr interface {
	eval(values map[string]float64) bool
	metrics() []string
}

type boolExpr struct {
	op          string // "&&" or "||"
	left, right condExpr
}

func (e *boolExpr) eval(v map[string]float64) bool {
	if e.op == "&&" {
		return e.left.eval(v) && e.right.eval(v)
	}
	return e.left.eval(v) || e.right.eval(v)
}

func (e *boolExpr) metrics() []string {
	return append(e.left.metrics(), e.right.metrics()...)
}

type cmpExpr struct {
	metric string
	op     string
	value  float64
}

func (e *cmpExpr) eval(v map[string]float64) bool {
	x := v[e.metric]
	switch e.op {
	case ">":
		return x > e.value
	case ">=":
		return x >= e.value
	case "<":
		return x < e.value
	case "<=":
		return x <= e.value
	case "==":
		return x == e.value
	case "!=":
		return x != e.value
	}
	return false
}

func (e *cmpExpr) metrics() []string { return []string{e.metric} }

// condParser is a recursive-descent parser over a token stream.
type condParser struct {
	tokens []string
	pos    int
}

// parseCondition parses a condition string into an expression tree.
func parseCondition(condition string) (condExpr, error) {
	tokens, err := tokenizeCondition(condition)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty condition", ErrInvalidExpression)
	}
	p := &condParser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("%w: unexpected token %q", ErrInvalidExpression, p.tokens[p.pos])
	}
	return expr, nil
}

func (p *condParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *condParser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *condParser) parseOr() (condExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "||" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (condExpr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&&" {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *condParser) parseTerm() (condExpr, error) {
	if p.peek() == "(" {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrInvalidExpression)
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *condParser) parseComparison() (condExpr, error) {
	metric := p.next()
	if metric == "" || !isIdentifier(metric) {
		return nil, fmt.Errorf("%w: expected metric name, got %q", ErrInvalidExpression, metric)
	}
	op := p.next()
	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return nil, fmt.Errorf("%w: expected comparison operator, got %q", ErrInvalidExpression, op)
	}
	lit := p.next()
	value, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: expected number, got %q", ErrInvalidExpression, lit)
	}
	return &cmpExpr{metric: metric, op: op, value: value}, nil
}

// tokenizeCondition splits a condition into identifiers, numbers, operators
// and parentheses. Unknown characters fail rather than being skipped.
func tokenizeCondition(s string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '&' || c == '|':
			if i+1 >= len(s) || s[i+1] != c {
				return nil, fmt.Errorf("%w: single %q", ErrInvalidExpression, string(c))
			}
			tokens = append(tokens, s[i:i+2])
			i += 2
		case c == '>' || c == '<' || c == '=' || c == '!':
			if i+1 < len(s) && s[i+1] == '=' {
				tokens = append(tokens, s[i:i+2])
				i += 2
			} else if c == '>' || c == '<' {
				tokens = append(tokens, string(c))
				i++
			} else {
				return nil, fmt.Errorf("%w: bad operator at %q", ErrInvalidExpression, s[i:])
			}
		case unicode.IsDigit(rune(c)) || c == '.' || c == '-':
			j := i + 1
			for j < len(s) && (unicode.IsDigit(rune(s[j])) || s[j] == '.' || s[j] == 'e' || s[j] == 'E' || s[j] == '-' || s[j] == '+') {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i + 1
			for j < len(s) && (unicode.IsLetter(rune(s[j])) || unicode.IsDigit(rune(s[j])) || s[j] == '_') {
				j++
			}
			tokens = append(tokens, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrInvalidExpression, string(c))
		}
	}
	return tokens, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return !strings.ContainsAny(s, "()")
}
