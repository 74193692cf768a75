package pep508

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Requirement
	}{
		{"numpy", Requirement{Name: "numpy"}},
		{"numpy==1.26", Requirement{Name: "numpy", Specifiers: []Specifier{{"==", "1.26"}}}},
		{"  numpy  ", Requirement{Name: "numpy"}},
		{"pandas[tabulate]>=1,<2", Requirement{
			Name:       "pandas",
			Extras:     []string{"tabulate"},
			Specifiers: []Specifier{{">=", "1"}, {"<", "2"}},
		}},
		{"requests [security , socks] (>= 2.8.1, == 2.8.*)", Requirement{
			Name:       "requests",
			Extras:     []string{"security", "socks"},
			Specifiers: []Specifier{{">=", "2.8.1"}, {"==", "2.8.*"}},
		}},
		{"name[]", Requirement{Name: "name"}},
		{"pip @ https://github.com/pypa/pip/archive/1.3.1.zip#sha1=da9234ee", Requirement{
			Name: "pip",
			URL:  "https://github.com/pypa/pip/archive/1.3.1.zip#sha1=da9234ee",
		}},
		{`tomli>=1.1.0; python_version < "3.11"`, Requirement{
			Name:       "tomli",
			Specifiers: []Specifier{{">=", "1.1.0"}},
			Marker:     `python_version < "3.11"`,
		}},
		{`pip @ file:///tmp/pip ; sys_platform == "linux"`, Requirement{
			Name:   "pip",
			URL:    "file:///tmp/pip",
			Marker: `sys_platform == "linux"`,
		}},
		{"inflection ~= 0.5.1", Requirement{Name: "inflection", Specifiers: []Specifier{{"~=", "0.5.1"}}}},
		{"legacy===1.0-custom", Requirement{Name: "legacy", Specifiers: []Specifier{{"===", "1.0-custom"}}}},
		{"numpy \\\n  ==1.26", Requirement{Name: "numpy", Specifiers: []Specifier{{"==", "1.26"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, *got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStart int
		wantLen   int
	}{
		{"invalid extra character", "numpy[ö]==1.29", 6, 2},
		{"leading punctuation", "-numpy", 0, 1},
		{"trailing separator", "numpy-", 5, 1},
		{"unclosed extras", "numpy[fast", 5, 1},
		{"bad extras separator", "numpy[a;b]", 7, 1},
		{"missing operator", "numpy 1.0", 6, 1},
		{"missing version", "numpy>=", 5, 2},
		{"empty clause", "numpy>=1,", 9, 0},
		{"empty marker", "numpy;", 5, 1},
		{"unclosed paren", "numpy (>=1", 6, 1},
		{"garbage after url", "pip @ https://x.invalid/pip.zip extra", 32, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want error", tt.input)
			}
			var perr *Error
			if !stderrors.As(err, &perr) {
				t.Fatalf("Parse(%q) error type = %T, want *Error", tt.input, err)
			}
			if perr.Start != tt.wantStart || perr.Len != tt.wantLen {
				t.Errorf("Parse(%q) range = [%d,+%d), want [%d,+%d)", tt.input, perr.Start, perr.Len, tt.wantStart, tt.wantLen)
			}
			if !errors.Is(err, errors.ErrCodeRequirementSpec) {
				t.Errorf("Parse(%q) code = %v, want %v", tt.input, errors.GetCode(err), errors.ErrCodeRequirementSpec)
			}
		})
	}
}

func TestErrorRendering(t *testing.T) {
	_, err := Parse("numpy[ö]==1.29")
	want := "Expected an alphanumeric character starting the extra name, found 'ö'\n" +
		"numpy[ö]==1.29\n" +
		"      ^"
	if err == nil || err.Error() != want {
		t.Errorf("Error() = %q, want %q", err, want)
	}
}

func TestRequirementString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"numpy", "numpy"},
		{"pandas [ tabulate ] >= 1 , < 2", "pandas[tabulate]>=1,<2"},
		{"pip@https://example.invalid/pip.zip", "pip @ https://example.invalid/pip.zip"},
		{`tomli>=1.1.0;python_version<"3.11"`, `tomli>=1.1.0; python_version<"3.11"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			req, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got := req.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllows(t *testing.T) {
	req, err := Parse("numpy>=1.20,<2")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		version string
		want    bool
	}{
		{"1.26.4", true},
		{"1.20", true},
		{"1.19.5", false},
		{"2.0.0", false},
	}
	for _, tt := range tests {
		got, err := req.Allows(tt.version)
		if err != nil {
			t.Fatalf("Allows(%q) error = %v", tt.version, err)
		}
		if got != tt.want {
			t.Errorf("Allows(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Django":              "django",
		"bio_embeddings_PLUS": "bio-embeddings-plus",
		"zope.interface":      "zope-interface",
		"a-_.b":               "a-b",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
