package pep508

import (
	"fmt"
	"regexp"
	"strings"

	version "github.com/aquasecurity/go-pep440-version"
)

// Requirement is a parsed dependency specifier.
// Exactly one of Specifiers and URL is set, or neither for a bare name.
type Requirement struct {
	Name       string      `json:"name"`
	Extras     []string    `json:"extras,omitempty"`
	Specifiers []Specifier `json:"specifiers,omitempty"`
	URL        string      `json:"url,omitempty"`
	Marker     string      `json:"marker,omitempty"`
}

// Specifier is a single version clause such as ">=2.28".
type Specifier struct {
	Operator string `json:"operator"`
	Version  string `json:"version"`
}

func (s Specifier) String() string { return s.Operator + s.Version }

// String renders the requirement in canonical PEP 508 form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	switch {
	case r.URL != "":
		b.WriteString(" @ " + r.URL)
	case len(r.Specifiers) > 0:
		b.WriteString(r.VersionSpec())
	}
	if r.Marker != "" {
		if r.URL != "" {
			b.WriteString(" ")
		}
		b.WriteString("; " + r.Marker)
	}
	return b.String()
}

// VersionSpec returns the comma-joined version clauses, or "" if there are none.
func (r Requirement) VersionSpec() string {
	parts := make([]string, len(r.Specifiers))
	for i, s := range r.Specifiers {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// NormalizedName returns the PEP 503 normalized distribution name.
func (r Requirement) NormalizedName() string {
	return NormalizeName(r.Name)
}

// Allows reports whether v satisfies every version clause.
// URL requirements and bare names allow any version.
func (r Requirement) Allows(v string) (bool, error) {
	if len(r.Specifiers) == 0 {
		return true, nil
	}
	parsed, err := version.Parse(v)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", v, err)
	}
	for _, s := range r.Specifiers {
		if s.Operator == "===" {
			if s.Version != v {
				return false, nil
			}
			continue
		}
		c, err := version.NewSpecifiers(s.String())
		if err != nil {
			return false, fmt.Errorf("parse specifier %q: %w", s.String(), err)
		}
		if !c.Check(parsed) {
			return false, nil
		}
	}
	return true, nil
}

var separatorRun = regexp.MustCompile(`[-_.]+`)

// NormalizeName converts a distribution name to its canonical form:
// lowercase, with runs of "-", "_" and "." collapsed to a single "-".
func NormalizeName(name string) string {
	return strings.ToLower(separatorRun.ReplaceAllString(strings.TrimSpace(name), "-"))
}
