package requirements

import (
	"fmt"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// Kind classifies a requirements file error.
type Kind int

const (
	// KindIO means the file could not be read.
	KindIO Kind = iota
	// KindSyntax is a structural grammar violation at Offset.
	KindSyntax
	// KindRequirement means the specifier in [Offset, End) was rejected;
	// Cause is the *pep508.Error.
	KindRequirement
	// KindInclude means an included file failed to parse. Offset points at
	// the include argument and Cause is the included file's *Error.
	KindInclude
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSyntax:
		return "syntax"
	case KindRequirement:
		return "requirement"
	case KindInclude:
		return "include"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a requirements file error. Include failures nest, so walking
// Cause from the outermost error visits every file of the include path
// down to the one that actually failed.
type Error struct {
	Kind    Kind
	File    string
	Offset  int
	End     int
	Message string
	Cause   error
}

// Summary describes this link of the chain without its causes.
func (e *Error) Summary() string {
	switch e.Kind {
	case KindIO:
		return fmt.Sprintf("Failed to read %s", e.File)
	case KindRequirement:
		return fmt.Sprintf("Couldn't parse requirement in %s position %d to %d", e.File, e.Offset, e.End)
	case KindInclude:
		return fmt.Sprintf("Failed to parse %s position %d due to an error in an included file", e.File, e.Offset)
	default:
		return fmt.Sprintf("%s in %s position %d", e.Message, e.File, e.Offset)
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Summary() + ": " + e.Cause.Error()
	}
	return e.Summary()
}

func (e *Error) Unwrap() error { return e.Cause }

// Code implements errors.Coder.
func (e *Error) Code() errors.Code {
	switch e.Kind {
	case KindIO:
		return errors.ErrCodeIO
	case KindRequirement:
		return errors.ErrCodeRequirementSpec
	case KindInclude:
		return errors.ErrCodeRequirementsInclude
	default:
		return errors.ErrCodeRequirementsSyntax
	}
}

// Chain returns the presentation lines of the error chain, outermost
// first: one line per *Error link followed by the root cause.
func (e *Error) Chain() []string {
	var lines []string
	var err error = e
	for err != nil {
		link, ok := err.(*Error)
		if !ok {
			lines = append(lines, err.Error())
			break
		}
		lines = append(lines, link.Summary())
		err = link.Cause
	}
	return lines
}

func syntaxError(file string, offset int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntax, File: file, Offset: offset, Message: fmt.Sprintf(format, args...)}
}
