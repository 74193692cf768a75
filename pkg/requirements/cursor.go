package requirements

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Cursor scans a UTF-8 buffer by byte offset. Every advance moves over
// whole runes, so Pos never points into the middle of a character.
type Cursor struct {
	input string
	pos   int
}

// NewCursor returns a cursor at the start of input.
func NewCursor(input string) *Cursor {
	return &Cursor{input: input}
}

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Done reports whether the whole input has been consumed.
func (c *Cursor) Done() bool { return c.pos >= len(c.input) }

// Rest returns the unconsumed input.
func (c *Cursor) Rest() string { return c.input[c.pos:] }

// From returns the input between start and the current position.
func (c *Cursor) From(start int) string { return c.input[start:c.pos] }

// Span returns the input between two byte offsets.
func (c *Cursor) Span(start, end int) string { return c.input[start:end] }

// Peek returns the next rune without consuming it.
func (c *Cursor) Peek() (rune, bool) {
	if c.Done() {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(c.input[c.pos:])
	return r, true
}

// At reports whether the unconsumed input starts with prefix.
func (c *Cursor) At(prefix string) bool {
	return strings.HasPrefix(c.input[c.pos:], prefix)
}

// AtFunc reports whether the next rune satisfies pred.
func (c *Cursor) AtFunc(pred func(rune) bool) bool {
	r, ok := c.Peek()
	return ok && pred(r)
}

// AtNewline reports whether the cursor sits on a line break.
func (c *Cursor) AtNewline() bool {
	return c.AtFunc(isNewline)
}

// EatIf consumes prefix if the input starts with it.
func (c *Cursor) EatIf(prefix string) bool {
	if !c.At(prefix) {
		return false
	}
	c.pos += len(prefix)
	return true
}

// Eat consumes and returns the next rune.
func (c *Cursor) Eat() (rune, bool) {
	if c.Done() {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(c.input[c.pos:])
	c.pos += size
	return r, true
}

// EatWhile consumes runes while pred holds and returns them.
func (c *Cursor) EatWhile(pred func(rune) bool) string {
	start := c.pos
	for !c.Done() {
		r, size := utf8.DecodeRuneInString(c.input[c.pos:])
		if !pred(r) {
			break
		}
		c.pos += size
	}
	return c.From(start)
}

// EatUntil consumes runes up to (not including) the first one matching stop.
func (c *Cursor) EatUntil(stop func(rune) bool) string {
	return c.EatWhile(func(r rune) bool { return !stop(r) })
}

// EatWhitespace consumes all whitespace, line breaks included.
func (c *Cursor) EatWhitespace() string {
	return c.EatWhile(unicode.IsSpace)
}

// EatBlanks consumes horizontal whitespace and backslash-escaped line
// breaks, which count as whitespace. It never crosses an unescaped newline.
func (c *Cursor) EatBlanks() string {
	start := c.pos
	for {
		c.EatWhile(isBlank)
		if !c.EatIf("\\\n") && !c.EatIf("\\\r\n") {
			break
		}
	}
	return c.From(start)
}

func isNewline(r rune) bool { return r == '\n' || r == '\r' }

func isBlank(r rune) bool { return unicode.IsSpace(r) && !isNewline(r) }
