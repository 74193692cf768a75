package pep508

import (
	"fmt"
	"strings"
	"unicode/utf8"

	version "github.com/aquasecurity/go-pep440-version"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// Error is a dependency specifier syntax error.
// Start and Len are byte offsets into Input.
type Error struct {
	Message string
	Input   string
	Start   int
	Len     int
}

// Error renders the message followed by the input and a caret line under
// the offending range.
func (e *Error) Error() string {
	start := min(e.Start, len(e.Input))
	end := min(start+e.Len, len(e.Input))
	indent := utf8.RuneCountInString(e.Input[:start])
	width := max(utf8.RuneCountInString(e.Input[start:end]), 1)
	return fmt.Sprintf("%s\n%s\n%s%s", e.Message, e.Input, strings.Repeat(" ", indent), strings.Repeat("^", width))
}

// Code implements errors.Coder.
func (e *Error) Code() errors.Code { return errors.ErrCodeRequirementSpec }

// operators is ordered so that longer operators match first.
var operators = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// Parse parses a single dependency specifier.
func Parse(input string) (*Requirement, error) {
	p := &parser{input: input}
	return p.requirement()
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.input) }

func (p *parser) peek() (rune, int) {
	if p.done() {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(p.input[p.pos:])
}

func (p *parser) at(b byte) bool {
	return !p.done() && p.input[p.pos] == b
}

// skipSpace skips blanks and backslash-escaped line breaks.
func (p *parser) skipSpace() {
	for !p.done() {
		rest := p.input[p.pos:]
		switch {
		case rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r' || rest[0] == '\n':
			p.pos++
		case strings.HasPrefix(rest, "\\\n"):
			p.pos += 2
		case strings.HasPrefix(rest, "\\\r\n"):
			p.pos += 3
		default:
			return
		}
	}
}

func (p *parser) errorf(start, length int, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Input: p.input, Start: start, Len: length}
}

// found describes the next character for error messages.
func (p *parser) found() (string, int) {
	if p.done() {
		return "end of dependency specification", 0
	}
	r, size := p.peek()
	return fmt.Sprintf("'%c'", r), size
}

func isAlnum(r rune) bool {
	return r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}

func isIdentChar(r rune) bool {
	return isAlnum(r) || r == '-' || r == '_' || r == '.'
}

func (p *parser) requirement() (*Requirement, error) {
	p.skipSpace()
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	req := &Requirement{Name: name}

	p.skipSpace()
	if p.at('[') {
		if req.Extras, err = p.extras(); err != nil {
			return nil, err
		}
		p.skipSpace()
	}

	switch {
	case p.at('@'):
		p.pos++
		if req.URL, err = p.url(); err != nil {
			return nil, err
		}
	case p.at('('):
		open := p.pos
		p.pos++
		closing := strings.IndexByte(p.input[p.pos:], ')')
		if closing < 0 {
			return nil, p.errorf(open, 1, "Missing closing parenthesis (expected ')', found end of dependency specification)")
		}
		if req.Specifiers, err = p.specifiers(p.pos, p.pos+closing); err != nil {
			return nil, err
		}
		p.pos += closing + 1
	case !p.done() && !p.at(';'):
		end := strings.IndexByte(p.input[p.pos:], ';')
		if end < 0 {
			end = len(p.input)
		} else {
			end += p.pos
		}
		if req.Specifiers, err = p.specifiers(p.pos, end); err != nil {
			return nil, err
		}
		p.pos = end
	}

	p.skipSpace()
	if p.at(';') {
		start := p.pos
		p.pos++
		req.Marker = strings.TrimSpace(p.input[p.pos:])
		if req.Marker == "" {
			return nil, p.errorf(start, 1, "Expected a marker after ';', found end of dependency specification")
		}
		p.pos = len(p.input)
	}

	if !p.done() {
		found, size := p.found()
		return nil, p.errorf(p.pos, size, "Expected end of dependency specification, found %s", found)
	}
	return req, nil
}

func (p *parser) name() (string, error) {
	start := p.pos
	if r, _ := p.peek(); !isAlnum(r) {
		found, size := p.found()
		return "", p.errorf(p.pos, size, "Expected package name starting with an alphanumeric character, found %s", found)
	}
	for !p.done() {
		r, size := p.peek()
		if !isIdentChar(r) {
			break
		}
		p.pos += size
	}
	name := p.input[start:p.pos]
	if last := rune(name[len(name)-1]); !isAlnum(last) {
		return "", p.errorf(p.pos-1, 1, "Package name must end with an alphanumeric character, not '%c'", last)
	}
	return name, nil
}

func (p *parser) extras() ([]string, error) {
	open := p.pos
	p.pos++
	var extras []string
	p.skipSpace()
	if p.at(']') {
		p.pos++
		return extras, nil
	}
	for {
		p.skipSpace()
		if p.done() {
			return nil, p.errorf(open, 1, "Missing closing bracket (expected ']', found end of dependency specification)")
		}
		if r, _ := p.peek(); !isAlnum(r) {
			found, size := p.found()
			return nil, p.errorf(p.pos, size, "Expected an alphanumeric character starting the extra name, found %s", found)
		}
		start := p.pos
		for !p.done() {
			r, size := p.peek()
			if !isIdentChar(r) {
				break
			}
			p.pos += size
		}
		extras = append(extras, p.input[start:p.pos])

		p.skipSpace()
		switch {
		case p.done():
			return nil, p.errorf(open, 1, "Missing closing bracket (expected ']', found end of dependency specification)")
		case p.at(','):
			p.pos++
		case p.at(']'):
			p.pos++
			return extras, nil
		default:
			found, size := p.found()
			return nil, p.errorf(p.pos, size, "Expected either ',' (separating extras) or ']' (ending the extras section), found %s", found)
		}
	}
}

func (p *parser) url() (string, error) {
	p.skipSpace()
	start := p.pos
	for !p.done() {
		c := p.input[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return "", p.errorf(start, 0, "Expected URL after '@', found end of dependency specification")
	}
	return p.input[start:p.pos], nil
}

// specifiers parses the comma-separated version clauses in input[start:end].
func (p *parser) specifiers(start, end int) ([]Specifier, error) {
	var specs []Specifier
	for start <= end {
		next := strings.IndexByte(p.input[start:end], ',')
		clauseEnd := end
		if next >= 0 {
			clauseEnd = start + next
		}
		spec, err := p.specifier(start, clauseEnd)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
		if next < 0 {
			break
		}
		start = clauseEnd + 1
	}
	return specs, nil
}

func (p *parser) specifier(start, end int) (Specifier, error) {
	raw := p.input[start:end]
	trimmed := strings.TrimLeft(raw, " \t\r\n\\")
	offset := start + len(raw) - len(trimmed)
	trimmed = strings.TrimRight(trimmed, " \t\r\n\\")
	if trimmed == "" {
		return Specifier{}, p.errorf(start, end-start, "Expected a version specifier, found an empty clause")
	}

	var op string
	for _, candidate := range operators {
		if strings.HasPrefix(trimmed, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		r, size := utf8.DecodeRuneInString(trimmed)
		return Specifier{}, p.errorf(offset, size, "Expected a comparison operator (one of %s), found '%c'", strings.Join(operators, ", "), r)
	}

	ver := strings.TrimSpace(trimmed[len(op):])
	if ver == "" {
		return Specifier{}, p.errorf(offset, len(trimmed), "Expected a version after '%s'", op)
	}
	spec := Specifier{Operator: op, Version: ver}
	if op != "===" {
		if _, err := version.NewSpecifiers(spec.String()); err != nil {
			return Specifier{}, p.errorf(offset, len(trimmed), "Invalid version specifier '%s': %v", spec.String(), err)
		}
	}
	return spec, nil
}
