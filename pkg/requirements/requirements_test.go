package requirements

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/observability"
	"github.com/matzehuels/wheelsmith/pkg/pep508"
)

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return fsys
}

func parseMem(t *testing.T, files map[string]string, path string) (*RequirementsTxt, error) {
	t.Helper()
	return ParseWithOptions(context.Background(), path, Options{Fs: memFs(t, files)})
}

func mustParseMem(t *testing.T, files map[string]string, path string) *RequirementsTxt {
	t.Helper()
	res, err := parseMem(t, files, path)
	if err != nil {
		t.Fatalf("ParseWithOptions(%s) error = %v", path, err)
	}
	return res
}

func entry(name string, specs ...pep508.Specifier) RequirementEntry {
	return RequirementEntry{Requirement: pep508.Requirement{Name: name, Specifiers: specs}}
}

func spec(op, v string) pep508.Specifier { return pep508.Specifier{Operator: op, Version: v} }

func diff(want, got *RequirementsTxt) string {
	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

func TestParseRequirements(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []RequirementEntry
	}{
		{
			name:    "single pinned requirement",
			content: "numpy==1.26\n",
			want:    []RequirementEntry{entry("numpy", spec("==", "1.26"))},
		},
		{
			name:    "no trailing newline",
			content: "numpy==1.26",
			want:    []RequirementEntry{entry("numpy", spec("==", "1.26"))},
		},
		{
			name:    "hashes keep their order",
			content: "numpy==1.26 --hash=sha256:abc --hash=sha256:def\n",
			want: []RequirementEntry{{
				Requirement: pep508.Requirement{Name: "numpy", Specifiers: []pep508.Specifier{spec("==", "1.26")}},
				Hashes:      []string{"sha256:abc", "sha256:def"},
			}},
		},
		{
			name:    "hashes on continuation lines",
			content: "numpy==1.26 \\\n    --hash sha256:abc \\\n    --hash=sha256:def\nrequests\n",
			want: []RequirementEntry{
				{
					Requirement: pep508.Requirement{Name: "numpy", Specifiers: []pep508.Specifier{spec("==", "1.26")}},
					Hashes:      []string{"sha256:abc", "sha256:def"},
				},
				entry("requests"),
			},
		},
		{
			name:    "continuation inside a requirement",
			content: "pandas[tabulate] \\\n  >=1,<2\n",
			want: []RequirementEntry{{Requirement: pep508.Requirement{
				Name:       "pandas",
				Extras:     []string{"tabulate"},
				Specifiers: []pep508.Specifier{spec(">=", "1"), spec("<", "2")},
			}}},
		},
		{
			name:    "comments and blank lines",
			content: "# tooling\n\n  requests>=2  # http client\n\n\t# indented comment\nflask\n",
			want:    []RequirementEntry{entry("requests", spec(">=", "2")), entry("flask")},
		},
		{
			name:    "crlf line endings",
			content: "numpy==1.26\r\nrequests\r\n",
			want:    []RequirementEntry{entry("numpy", spec("==", "1.26")), entry("requests")},
		},
		{
			name:    "url requirement keeps its fragment",
			content: "pip @ https://github.com/pypa/pip/archive/1.3.1.zip#sha1=da9234ee\n",
			want: []RequirementEntry{{Requirement: pep508.Requirement{
				Name: "pip",
				URL:  "https://github.com/pypa/pip/archive/1.3.1.zip#sha1=da9234ee",
			}}},
		},
		{
			name:    "marker",
			content: "tomli>=1.1.0; python_version < \"3.11\"\n",
			want: []RequirementEntry{{Requirement: pep508.Requirement{
				Name:       "tomli",
				Specifiers: []pep508.Specifier{spec(">=", "1.1.0")},
				Marker:     `python_version < "3.11"`,
			}}},
		},
		{
			name:    "editable short and long form",
			content: "-e flake8\n--editable=black[d]>=23\n",
			want: []RequirementEntry{
				{Requirement: pep508.Requirement{Name: "flake8"}, Editable: true},
				{Requirement: pep508.Requirement{
					Name:       "black",
					Extras:     []string{"d"},
					Specifiers: []pep508.Specifier{spec(">=", "23")},
				}, Editable: true},
			},
		},
		{
			name:    "empty file",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParseMem(t, map[string]string{"/reqs/requirements.txt": tt.content}, "/reqs/requirements.txt")
			want := &RequirementsTxt{Requirements: tt.want}
			if d := diff(want, got); d != "" {
				t.Errorf("mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestConstraintsIncludeDemotesRequirements(t *testing.T) {
	files := map[string]string{
		"/reqs/requirements.txt": "-c constraints.txt\nrequests\n",
		"/reqs/constraints.txt":  "-e urllib3>=2 --hash=sha256:aa\ncertifi --hash=sha256:bb\n-c more.txt\n",
		"/reqs/more.txt":         "idna<4\n",
	}
	got := mustParseMem(t, files, "/reqs/requirements.txt")

	want := &RequirementsTxt{
		Requirements: []RequirementEntry{entry("requests")},
		Constraints: []pep508.Requirement{
			{Name: "urllib3", Specifiers: []pep508.Specifier{spec(">=", "2")}},
			{Name: "certifi"},
			{Name: "idna", Specifiers: []pep508.Specifier{spec("<", "4")}},
		},
	}
	if d := diff(want, got); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}
}

func TestNestedIncludesResolveRelativeToIncludingFile(t *testing.T) {
	files := map[string]string{
		"/project/requirements.txt":    "-r sub/base.txt\nflask\n",
		"/project/sub/base.txt":        "-r deeper/core.txt\nclick\n",
		"/project/sub/deeper/core.txt": "--constraint=pins.txt\nitsdangerous\n",
		"/project/sub/deeper/pins.txt": "werkzeug<4\n",
		"/project/deeper/core.txt":     "wrong-directory\n",
	}
	got := mustParseMem(t, files, "/project/requirements.txt")

	want := &RequirementsTxt{
		Requirements: []RequirementEntry{entry("itsdangerous"), entry("click"), entry("flask")},
		Constraints:  []pep508.Requirement{{Name: "werkzeug", Specifiers: []pep508.Specifier{spec("<", "4")}}},
	}
	if d := diff(want, got); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}
}

func TestDiamondIncludesAreMerged(t *testing.T) {
	files := map[string]string{
		"/reqs/requirements.txt": "-r a.txt\n--requirement b.txt\n",
		"/reqs/a.txt":            "-r common.txt\nalpha\n",
		"/reqs/b.txt":            "-r common.txt\nbeta\n",
		"/reqs/common.txt":       "six\n",
	}
	got := mustParseMem(t, files, "/reqs/requirements.txt")

	want := &RequirementsTxt{
		Requirements: []RequirementEntry{entry("six"), entry("alpha"), entry("six"), entry("beta")},
	}
	if d := diff(want, got); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}
}

func TestInvalidRequirementRange(t *testing.T) {
	_, err := parseMem(t, map[string]string{"/reqs/invalid-requirement": "numpy[ö]==1.29\n"}, "/reqs/invalid-requirement")

	var rerr *Error
	if !stderrors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Kind != KindRequirement {
		t.Errorf("Kind = %v, want %v", rerr.Kind, KindRequirement)
	}
	if rerr.Offset != 0 || rerr.End != 15 {
		t.Errorf("range = %d..%d, want 0..15", rerr.Offset, rerr.End)
	}
	var perr *pep508.Error
	if !stderrors.As(err, &perr) {
		t.Fatalf("cause type = %T, want *pep508.Error", rerr.Cause)
	}

	want := []string{
		"Couldn't parse requirement in /reqs/invalid-requirement position 0 to 15",
		"Expected an alphanumeric character starting the extra name, found 'ö'\n" +
			"numpy[ö]==1.29\n" +
			"      ^",
	}
	if d := cmp.Diff(want, rerr.Chain()); d != "" {
		t.Errorf("Chain() mismatch (-want +got):\n%s", d)
	}
	if !errors.Is(err, errors.ErrCodeRequirementSpec) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeRequirementSpec)
	}
}

func TestMissingIncludeChain(t *testing.T) {
	for _, flag := range []string{"-r", "-c"} {
		t.Run(flag, func(t *testing.T) {
			_, err := parseMem(t, map[string]string{"/reqs/invalid-include": flag + " missing.txt\n"}, "/reqs/invalid-include")

			var rerr *Error
			if !stderrors.As(err, &rerr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if rerr.Kind != KindInclude || rerr.Offset != 2 {
				t.Errorf("outer = %v at %d, want include at 2", rerr.Kind, rerr.Offset)
			}
			if !stderrors.Is(err, fs.ErrNotExist) {
				t.Errorf("error chain does not contain fs.ErrNotExist: %v", err)
			}

			chain := rerr.Chain()
			if len(chain) != 3 {
				t.Fatalf("Chain() = %q, want 3 lines", chain)
			}
			if want := "Failed to parse /reqs/invalid-include position 2 due to an error in an included file"; chain[0] != want {
				t.Errorf("chain[0] = %q, want %q", chain[0], want)
			}
			if want := "Failed to read /reqs/missing.txt"; chain[1] != want {
				t.Errorf("chain[1] = %q, want %q", chain[1], want)
			}
			if errors.GetCode(err) != errors.ErrCodeRequirementsInclude {
				t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeRequirementsInclude)
			}
			if !errors.Is(err, errors.ErrCodeIO) {
				t.Error("errors.Is(err, ErrCodeIO) = false, want true")
			}
		})
	}
}

func TestIncludeErrorChainNamesEveryFile(t *testing.T) {
	files := map[string]string{
		"/reqs/requirements.txt": "flask\n-r dev/dev.txt\n",
		"/reqs/dev/dev.txt":      "pytest\n-r lint.txt\n",
		"/reqs/dev/lint.txt":     "ruff\nblack[\n",
	}
	_, err := parseMem(t, files, "/reqs/requirements.txt")

	var rerr *Error
	if !stderrors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	chain := rerr.Chain()
	want := []string{
		"Failed to parse /reqs/requirements.txt position 8 due to an error in an included file",
		"Failed to parse /reqs/dev/dev.txt position 9 due to an error in an included file",
		"Couldn't parse requirement in /reqs/dev/lint.txt position 5 to 11",
	}
	if len(chain) != 4 {
		t.Fatalf("Chain() = %q, want 4 lines", chain)
	}
	if d := cmp.Diff(want, chain[:3]); d != "" {
		t.Errorf("Chain() mismatch (-want +got):\n%s", d)
	}
}

func TestIncludeCycle(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name:  "self include",
			files: map[string]string{"/reqs/a.txt": "six\n-r a.txt\n"},
		},
		{
			name: "mutual include",
			files: map[string]string{
				"/reqs/a.txt": "-r b.txt\n",
				"/reqs/b.txt": "-c ./a.txt\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMem(t, tt.files, "/reqs/a.txt")
			var rerr *Error
			if !stderrors.As(err, &rerr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			innermost := rerr
			for {
				next, ok := innermost.Cause.(*Error)
				if !ok {
					break
				}
				innermost = next
			}
			if innermost.Kind != KindSyntax {
				t.Errorf("innermost Kind = %v, want %v", innermost.Kind, KindSyntax)
			}
			if !strings.Contains(innermost.Message, "Include cycle") {
				t.Errorf("innermost Message = %q, want include cycle", innermost.Message)
			}
		})
	}
}

func TestMaxDepth(t *testing.T) {
	files := memFs(t, map[string]string{
		"/reqs/a.txt": "-r b.txt\n",
		"/reqs/b.txt": "-r c.txt\n",
		"/reqs/c.txt": "six\n",
	})

	if _, err := ParseWithOptions(context.Background(), "/reqs/a.txt", Options{Fs: files, MaxDepth: 3}); err != nil {
		t.Fatalf("MaxDepth 3 error = %v", err)
	}

	_, err := ParseWithOptions(context.Background(), "/reqs/a.txt", Options{Fs: files, MaxDepth: 2})
	var rerr *Error
	if !stderrors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	inner, ok := rerr.Cause.(*Error)
	if !ok || inner.Kind != KindSyntax || inner.File != "/reqs/b.txt" {
		t.Errorf("inner = %v, want syntax error in /reqs/b.txt", rerr.Cause)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantOffset int
		wantMsg    string
	}{
		{"unsupported long option", "--index-url https://pypi.invalid/simple\n", 0, "Unsupported option '--index-url'"},
		{"unsupported short option", "numpy\n-i https://pypi.invalid/simple\n", 6, "Unsupported option '-i'"},
		{"plain path", "./local/pkg\n", 0, "Expected a requirement, an include or a comment, found './local/pkg'"},
		{"include without separator", "-rfoo.txt\n", 2, "Expected '=' or whitespace, found 'f'"},
		{"include at end of line", "-r\nfoo.txt\n", 2, "Expected '=' or whitespace, found end of line"},
		{"include at end of file", "-c", 2, "Expected '=' or whitespace, found end of file"},
		{"include with empty path", "-r   # nothing\n", 2, "Expected a file path after '-r'"},
		{"editable without separator", "-eflake8\n", 2, "Expected '=' or whitespace, found 'f'"},
		{"option after requirement", "numpy --index-url x\n", 6, "Expected '--hash', found '--index-url'"},
		{"malformed hash", "numpy --hash=abc\n", 12, "Expected a hash of the form '<algorithm>:<digest>', found 'abc'"},
		{"trailing garbage after hashes", "numpy==1 --hash=sha256:a trailing\n", 25, "Expected a comment or the end of the line, found 'trailing'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMem(t, map[string]string{"/reqs/r.txt": tt.content}, "/reqs/r.txt")
			var rerr *Error
			if !stderrors.As(err, &rerr) {
				t.Fatalf("error type = %T (%v), want *Error", err, err)
			}
			if rerr.Kind != KindSyntax {
				t.Fatalf("Kind = %v (%v), want %v", rerr.Kind, err, KindSyntax)
			}
			if rerr.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", rerr.Offset, tt.wantOffset)
			}
			if rerr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", rerr.Message, tt.wantMsg)
			}
			if !errors.Is(err, errors.ErrCodeRequirementsSyntax) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeRequirementsSyntax)
			}
		})
	}
}

func TestInvalidUTF8(t *testing.T) {
	_, err := parseMem(t, map[string]string{"/reqs/r.txt": "numpy\n\xff\n"}, "/reqs/r.txt")
	var rerr *Error
	if !stderrors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Kind != KindIO || rerr.Offset != 6 {
		t.Errorf("got %v at %d, want io at 6", rerr.Kind, rerr.Offset)
	}
}

func TestParseFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("requirements.txt", "-r sub/base.txt\nnumpy==1.26\n")
	write("sub/base.txt", "six\n")

	got, err := Parse(filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := &RequirementsTxt{Requirements: []RequirementEntry{entry("six"), entry("numpy", spec("==", "1.26"))}}
	if d := diff(want, got); d != "" {
		t.Errorf("mismatch (-want +got):\n%s", d)
	}
}

type recordingParseHooks struct {
	observability.NoopParseHooks
	started      []string
	requirements int
	constraints  int
	err          error
}

func (h *recordingParseHooks) OnParseStart(_ context.Context, file string) {
	h.started = append(h.started, file)
}

func (h *recordingParseHooks) OnParseComplete(_ context.Context, _ string, requirements, constraints int, _ time.Duration, err error) {
	h.requirements, h.constraints, h.err = requirements, constraints, err
}

func TestParseHooks(t *testing.T) {
	hooks := &recordingParseHooks{}
	observability.SetParseHooks(hooks)
	t.Cleanup(observability.Reset)

	files := map[string]string{
		"/reqs/requirements.txt": "-c pins.txt\nnumpy\nrequests\n",
		"/reqs/pins.txt":         "numpy<2\n",
	}
	mustParseMem(t, files, "/reqs/requirements.txt")

	if len(hooks.started) != 1 || hooks.started[0] != "/reqs/requirements.txt" {
		t.Errorf("started = %v, want [/reqs/requirements.txt]", hooks.started)
	}
	if hooks.requirements != 2 || hooks.constraints != 1 || hooks.err != nil {
		t.Errorf("complete = (%d, %d, %v), want (2, 1, nil)", hooks.requirements, hooks.constraints, hooks.err)
	}
}
