package expr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/senselogic/internal/ir"
)

// ParseError reports malformed expression text.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Pos+1, e.Message)
}

// Parse reads any expression.
func Parse(text string) (Node, error) {
	p := &parser{src: text}
	n, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q after expression", p.rest())
	}
	return n, nil
}

// ParseLogical reads an expression that must produce a TriState.
func ParseLogical(text string) (Logical, error) {
	n, err := Parse(text)
	if err != nil {
		return nil, err
	}
	l, ok := n.(Logical)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("%s does not produce a truth value", text)}
	}
	return l, nil
}

// ParseValue reads an expression that must produce readings.
func ParseValue(text string) (Valued, error) {
	n, err := Parse(text)
	if err != nil {
		return nil, err
	}
	v, ok := n.(Valued)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("%s does not produce values", text)}
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool   { return p.pos >= len(p.src) }
func (p *parser) rest() string { return p.src[p.pos:] }

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
}

// keyword consumes word if it appears at the cursor as a whole word.
func (p *parser) keyword(word string) bool {
	if !strings.HasPrefix(p.rest(), word) {
		return false
	}
	end := p.pos + len(word)
	if end < len(p.src) && isNameByte(p.src[end]) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) node() (Node, error) {
	p.skipSpace()
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	switch {
	case p.src[p.pos] == '(':
		return p.binary()
	case p.atLeaf():
		return p.leaf()
	case p.keyword("NOT"):
		start := p.pos
		child, err := p.node()
		if err != nil {
			return nil, err
		}
		l, ok := child.(Logical)
		if !ok {
			return nil, &ParseError{Pos: start, Message: "NOT needs a truth-valued operand"}
		}
		return NewNot(l), nil
	}
	v, n, err := ir.ScanLiteral(p.rest())
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	p.pos += n
	return NewConstant(v), nil
}

func (p *parser) binary() (Node, error) {
	open := p.pos
	p.pos++
	left, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	opPos := p.pos
	op := p.operator()
	if op == "" {
		return nil, p.errorf("expected operator at %q", p.rest())
	}
	right, err := p.node()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.done() || p.src[p.pos] != ')' {
		return nil, &ParseError{Pos: open, Message: "unclosed parenthesis"}
	}
	p.pos++
	n, err := combine(op, left, right)
	if err != nil {
		return nil, &ParseError{Pos: opPos, Message: err.Error()}
	}
	return n, nil
}

var symbolOperators = []string{"==", "!=", "<=", ">=", "<", ">", "+", "-", "*", "/", "%"}

func (p *parser) operator() string {
	for _, kw := range []string{"AND", "OR"} {
		if p.keyword(kw) {
			return kw
		}
	}
	for _, op := range symbolOperators {
		if strings.HasPrefix(p.rest(), op) {
			p.pos += len(op)
			return op
		}
	}
	return ""
}

func combine(op string, left, right Node) (Node, error) {
	switch op {
	case "AND", "OR":
		l, lok := left.(Logical)
		r, rok := right.(Logical)
		if !lok || !rok {
			return nil, fmt.Errorf("%s needs truth-valued operands", op)
		}
		if op == "AND" {
			return NewLogic(And, l, r), nil
		}
		return NewLogic(Or, l, r), nil
	}
	l, lok := left.(Valued)
	r, rok := right.(Valued)
	if !lok || !rok {
		return nil, fmt.Errorf("%s needs value operands", op)
	}
	if c, ok := ir.ParseComparator(op); ok {
		return NewComparison(c, l, r), nil
	}
	if a, ok := ir.ParseArithOp(op); ok {
		return NewArithmetic(a, l, r), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '/'
}

// atLeaf reports whether a sensor address starts at the cursor: a possibly
// empty run of name bytes followed by '@'.
func (p *parser) atLeaf() bool {
	i := p.pos
	for i < len(p.src) && isNameByte(p.src[i]) {
		i++
	}
	return i < len(p.src) && p.src[i] == '@'
}

func (p *parser) name() string {
	start := p.pos
	for !p.done() && isNameByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) expect(c byte) error {
	if p.done() || p.src[p.pos] != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *parser) leaf() (Node, error) {
	var b Binding
	b.Location = p.name()
	if err := p.expect('@'); err != nil {
		return nil, err
	}
	if b.Entity = p.name(); b.Entity == "" {
		return nil, p.errorf("missing sensor entity")
	}
	if err := p.expect(':'); err != nil {
		return nil, err
	}
	if b.ValuePath = p.name(); b.ValuePath == "" {
		return nil, p.errorf("missing value path")
	}

	if !p.done() && p.src[p.pos] == '?' {
		p.pos++
		start := p.pos
		for !p.done() && !strings.ContainsRune("{) \t\n\r", rune(p.src[p.pos])) {
			p.pos++
		}
		values, err := url.ParseQuery(p.src[start:p.pos])
		if err != nil {
			return nil, &ParseError{Pos: start, Message: fmt.Sprintf("sensor configuration: %v", err)}
		}
		b.Config = make(map[string]string, len(values))
		for k, v := range values {
			if len(v) > 1 {
				return nil, &ParseError{Pos: start, Message: fmt.Sprintf("sensor configuration: key %q repeated", k)}
			}
			b.Config[k] = v[0]
		}
	}

	mode, hist := ir.Any, int64(0)
	if !p.done() && p.src[p.pos] == '{' {
		p.pos++
		end := strings.IndexByte(p.rest(), '}')
		if end < 0 {
			return nil, p.errorf("unclosed history specifier")
		}
		spec := p.src[p.pos : p.pos+end]
		modeName, histText, ok := strings.Cut(spec, ",")
		if !ok {
			return nil, p.errorf("history specifier %q needs MODE,MILLISECONDS", spec)
		}
		var err error
		if mode, err = ir.ParseReductionMode(strings.TrimSpace(modeName)); err != nil {
			return nil, p.errorf("%v", err)
		}
		if hist, err = strconv.ParseInt(strings.TrimSpace(histText), 10, 64); err != nil || hist < 0 {
			return nil, p.errorf("history length %q must be a non-negative integer", histText)
		}
		p.pos += end + 1
	}
	leaf, err := NewSensorLeaf(b, mode, hist)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	return leaf, nil
}
