package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidFilename, "bad name: %s", "foo.whl")

	if err.Code != ErrCodeInvalidFilename {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidFilename)
	}

	if err.Message != "bad name: foo.whl" {
		t.Errorf("Message = %v, want %v", err.Message, "bad name: foo.whl")
	}

	expected := "INVALID_FILENAME: bad name: foo.whl"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeArchive, cause, "failed to open")

	if err.Code != ErrCodeArchive {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeArchive)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

type positioned struct{ offset int }

func (p *positioned) Error() string { return fmt.Sprintf("at %d", p.offset) }
func (p *positioned) Code() Code    { return ErrCodeRequirementsSyntax }

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeLocked, "test"),
			code:     ErrCodeLocked,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeLocked, "test"),
			code:     ErrCodeIO,
			expected: false,
		},
		{
			name:     "outer code",
			err:      Wrap(ErrCodeRequirementsInclude, New(ErrCodeIO, "inner"), "outer"),
			code:     ErrCodeRequirementsInclude,
			expected: true,
		},
		{
			name:     "inner code",
			err:      Wrap(ErrCodeRequirementsInclude, New(ErrCodeIO, "inner"), "outer"),
			code:     ErrCodeIO,
			expected: true,
		},
		{
			name:     "coder through fmt wrapping",
			err:      fmt.Errorf("context: %w", &positioned{offset: 3}),
			code:     ErrCodeRequirementsSyntax,
			expected: true,
		},
		{
			name:     "inside joined errors",
			err:      Wrap(ErrCodeIO, errors.Join(New(ErrCodeRecordMismatch, "bad hash"), errors.New("rollback failed")), "outer"),
			code:     ErrCodeRecordMismatch,
			expected: true,
		},
		{
			name:     "second branch of joined errors",
			err:      errors.Join(errors.New("first"), fmt.Errorf("second: %w", New(ErrCodeLocked, "busy"))),
			code:     ErrCodeLocked,
			expected: true,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeRecordMismatch, "test"),
			expected: ErrCodeRecordMismatch,
		},
		{
			name:     "outermost wins",
			err:      Wrap(ErrCodeRequirementsInclude, New(ErrCodeIO, "inner"), "outer"),
			expected: ErrCodeRequirementsInclude,
		},
		{
			name:     "coder",
			err:      &positioned{},
			expected: ErrCodeRequirementsSyntax,
		},
		{
			name:     "joined errors in order",
			err:      errors.Join(errors.New("plain"), New(ErrCodeArchive, "zip"), New(ErrCodeIO, "disk")),
			expected: ErrCodeArchive,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "nested",
			err:      Wrap(ErrCodeBrokenEnv, New(ErrCodeIO, "missing bin/python"), "broken venv"),
			expected: "broken venv: missing bin/python",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}
