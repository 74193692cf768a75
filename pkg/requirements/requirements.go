// Package requirements parses pip-style requirements files.
//
// The supported subset is:
//
//	file        = (statement | blank ('#' any*)? newline)*
//	statement   = include | constraint | editable | requirement | comment
//	include     = ('-r' | '--requirement') ('=' | blanks) path
//	constraint  = ('-c' | '--constraint') ('=' | blanks) path
//	editable    = ('-e' | '--editable') ('=' | blanks) requirement
//	requirement = [A-Za-z0-9] pep508-tail (blanks hashes)? (blanks comment)?
//	hashes      = '--hash' ('=' | blanks) algorithm ':' digest (blanks hashes)?
//
// A backslash directly before a line break joins two lines. Includes are
// resolved relative to the directory of the including file and flattened
// into the result; everything reached through a constraints include is
// demoted to a bare constraint.
//
// Plain paths, archive URLs and global options such as --index-url are
// rejected with a positioned error instead of being silently skipped.
package requirements

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/matzehuels/wheelsmith/pkg/observability"
	"github.com/matzehuels/wheelsmith/pkg/pep508"
)

// DefaultMaxDepth bounds how deeply include files may nest.
const DefaultMaxDepth = 32

// RequirementsTxt is a flattened requirements file.
type RequirementsTxt struct {
	Requirements []RequirementEntry   `json:"requirements"`
	Constraints  []pep508.Requirement `json:"constraints"`
}

// RequirementEntry is a requirement together with the options that were
// attached to it in the file.
type RequirementEntry struct {
	Requirement pep508.Requirement `json:"requirement"`
	Hashes      []string           `json:"hashes"`
	Editable    bool               `json:"editable"`
}

// Options configures ParseWithOptions.
type Options struct {
	// Fs is the filesystem files are read from. Defaults to the OS filesystem.
	Fs afero.Fs
	// MaxDepth limits include nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	Logger   *log.Logger
}

// Parse reads and flattens the requirements file at path from the OS
// filesystem.
func Parse(path string) (*RequirementsTxt, error) {
	return ParseWithOptions(context.Background(), path, Options{})
}

// ParseWithOptions reads and flattens the requirements file at path.
// On error no partial result is returned; the error is always an *Error.
func ParseWithOptions(ctx context.Context, path string, opts Options) (*RequirementsTxt, error) {
	p := &parser{
		fs:       opts.Fs,
		maxDepth: opts.MaxDepth,
		logger:   opts.Logger,
	}
	if p.fs == nil {
		p.fs = afero.NewOsFs()
	}
	if p.maxDepth <= 0 {
		p.maxDepth = DefaultMaxDepth
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard)
	}

	hooks := observability.Parse()
	hooks.OnParseStart(ctx, path)
	start := time.Now()

	res, err := p.parseFile(path)
	if err != nil {
		hooks.OnParseComplete(ctx, path, 0, 0, time.Since(start), err)
		return nil, err
	}
	hooks.OnParseComplete(ctx, path, len(res.Requirements), len(res.Constraints), time.Since(start), nil)
	return res, nil
}

type parser struct {
	fs       afero.Fs
	maxDepth int
	logger   *log.Logger
	// stack holds the absolute paths of the files currently being parsed.
	stack []string
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (p *parser) parseFile(path string) (*RequirementsTxt, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, &Error{Kind: KindIO, File: path, Cause: err}
	}
	content := string(data)
	if off := invalidUTF8(content); off >= 0 {
		return nil, &Error{Kind: KindIO, File: path, Offset: off, Cause: fmt.Errorf("invalid UTF-8 at byte %d", off)}
	}

	p.stack = append(p.stack, absPath(path))
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	res := &RequirementsTxt{}
	c := NewCursor(content)
	for !c.Done() {
		if err := p.statement(c, path, res); err != nil {
			return nil, err
		}
	}
	p.logger.Debug("parsed requirements file", "file", path,
		"requirements", len(res.Requirements), "constraints", len(res.Constraints))
	return res, nil
}

func invalidUTF8(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

func (p *parser) statement(c *Cursor, file string, res *RequirementsTxt) error {
	c.EatWhitespace()
	start := c.Pos()
	switch {
	case c.Done():
		return nil
	case c.EatIf("#"):
		c.EatUntil(isNewline)
		return nil
	case c.EatIf("--requirement"), c.EatIf("-r"):
		return p.include(c, file, c.From(start), res, false)
	case c.EatIf("--constraint"), c.EatIf("-c"):
		return p.include(c, file, c.From(start), res, true)
	case c.EatIf("--editable"), c.EatIf("-e"):
		if err := separator(c, file); err != nil {
			return err
		}
		entry, err := p.requirement(c, file)
		if err != nil {
			return err
		}
		entry.Editable = true
		res.Requirements = append(res.Requirements, entry)
		return nil
	case c.At("-"):
		return syntaxError(file, start, "Unsupported option '%s'", c.EatUntil(unicode.IsSpace))
	case c.AtFunc(isASCIIAlnum):
		entry, err := p.requirement(c, file)
		if err != nil {
			return err
		}
		res.Requirements = append(res.Requirements, entry)
		return nil
	default:
		return syntaxError(file, start, "Expected a requirement, an include or a comment, found '%s'", c.EatUntil(unicode.IsSpace))
	}
}

// include parses the path argument of an include flag and merges the
// included file into res.
func (p *parser) include(c *Cursor, file, flag string, res *RequirementsTxt, constraints bool) error {
	location := c.Pos()
	target, err := value(c, file, func(r rune) bool { return isNewline(r) || r == '#' })
	if err != nil {
		return err
	}
	if target == "" {
		return syntaxError(file, location, "Expected a file path after '%s'", flag)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(file), target)
	}

	if slices.Contains(p.stack, absPath(target)) {
		return syntaxError(file, location, "Include cycle: %s is already being parsed", target)
	}
	if len(p.stack) >= p.maxDepth {
		return syntaxError(file, location, "Includes nested deeper than %d files", p.maxDepth)
	}

	p.logger.Debug("including file", "from", file, "file", target, "constraints", constraints)
	sub, err := p.parseFile(target)
	if err != nil {
		return &Error{Kind: KindInclude, File: file, Offset: location, Cause: err}
	}

	if constraints {
		for _, entry := range sub.Requirements {
			res.Constraints = append(res.Constraints, entry.Requirement)
		}
	} else {
		res.Requirements = append(res.Requirements, sub.Requirements...)
	}
	res.Constraints = append(res.Constraints, sub.Constraints...)
	return nil
}

// requirement parses a dependency specifier followed by optional hashes and
// an optional comment. The cursor is left on the line break that ends it.
func (p *parser) requirement(c *Cursor, file string) (RequirementEntry, error) {
	start := c.Pos()
	var end int
	hasHashes := false
	for {
		end = c.Pos()
		if c.Done() || c.AtNewline() {
			break
		}
		if c.EatBlanks() != "" {
			if c.At("--") {
				hasHashes = true
				break
			}
			if c.At("#") || c.Done() || c.AtNewline() {
				break
			}
			continue
		}
		c.Eat()
	}

	req, err := pep508.Parse(c.Span(start, end))
	if err != nil {
		return RequirementEntry{}, &Error{Kind: KindRequirement, File: file, Offset: start, End: end, Cause: err}
	}
	entry := RequirementEntry{Requirement: *req}

	if hasHashes {
		if entry.Hashes, err = hashes(c, file); err != nil {
			return RequirementEntry{}, err
		}
	}

	c.EatBlanks()
	switch {
	case c.At("#"):
		c.EatUntil(isNewline)
	case !c.Done() && !c.AtNewline():
		pos := c.Pos()
		return RequirementEntry{}, syntaxError(file, pos, "Expected a comment or the end of the line, found '%s'", c.EatUntil(unicode.IsSpace))
	}
	return entry, nil
}

// hashes parses one or more --hash options. The cursor must sit on the
// first one.
func hashes(c *Cursor, file string) ([]string, error) {
	var out []string
	for {
		if pos := c.Pos(); !c.EatIf("--hash") {
			return nil, syntaxError(file, pos, "Expected '--hash', found '%s'", c.EatUntil(unicode.IsSpace))
		}
		valuePos := c.Pos()
		hash, err := value(c, file, unicode.IsSpace)
		if err != nil {
			return nil, err
		}
		algorithm, digest, ok := strings.Cut(hash, ":")
		if !ok || algorithm == "" || digest == "" {
			return nil, syntaxError(file, valuePos, "Expected a hash of the form '<algorithm>:<digest>', found '%s'", hash)
		}
		out = append(out, hash)

		c.EatBlanks()
		if !c.At("--hash") {
			return out, nil
		}
	}
}

// value parses the argument of an option given as "=value" or " value".
func value(c *Cursor, file string, stop func(rune) bool) (string, error) {
	if err := separator(c, file); err != nil {
		return "", err
	}
	return strings.TrimRightFunc(c.EatUntil(stop), unicode.IsSpace), nil
}

func separator(c *Cursor, file string) error {
	switch {
	case c.EatIf("="):
		return nil
	case c.AtFunc(isBlank):
		c.EatBlanks()
		return nil
	default:
		return syntaxError(file, c.Pos(), "Expected '=' or whitespace, found %s", describeNext(c))
	}
}

func describeNext(c *Cursor) string {
	r, ok := c.Peek()
	switch {
	case !ok:
		return "end of file"
	case isNewline(r):
		return "end of line"
	default:
		return fmt.Sprintf("'%c'", r)
	}
}

func isASCIIAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
