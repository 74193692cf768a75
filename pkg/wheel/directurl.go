package wheel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"unicode/utf16"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// DirectURL is the PEP 610 direct_url.json document. Exactly one of
// ArchiveInfo, DirInfo and VCSInfo is set.
type DirectURL struct {
	URL          string       `json:"url"`
	ArchiveInfo  *ArchiveInfo `json:"archive_info,omitempty"`
	DirInfo      *DirInfo     `json:"dir_info,omitempty"`
	VCSInfo      *VCSInfo     `json:"vcs_info,omitempty"`
	Subdirectory string       `json:"subdirectory,omitempty"`
}

// ArchiveInfo describes an install from a wheel or sdist archive.
type ArchiveInfo struct {
	Hash   string            `json:"hash,omitempty"`
	Hashes map[string]string `json:"hashes,omitempty"`
}

// DirInfo describes an install from a local directory.
type DirInfo struct {
	Editable bool `json:"editable,omitempty"`
}

// VCSInfo describes an install from a version control checkout.
type VCSInfo struct {
	VCS               string `json:"vcs"`
	CommitID          string `json:"commit_id"`
	RequestedRevision string `json:"requested_revision,omitempty"`
}

// ArchiveDirectURL describes a local wheel file with the given sha256.
func ArchiveDirectURL(path, sha256Hex string) (*DirectURL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "failed to resolve %s", path)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return &DirectURL{
		URL: u.String(),
		ArchiveInfo: &ArchiveInfo{
			Hash:   "sha256=" + sha256Hex,
			Hashes: map[string]string{"sha256": sha256Hex},
		},
	}, nil
}

// Validate checks the exactly-one-info rule.
func (d *DirectURL) Validate() error {
	n := 0
	for _, set := range []bool{d.ArchiveInfo != nil, d.DirInfo != nil, d.VCSInfo != nil} {
		if set {
			n++
		}
	}
	if d.URL == "" || n != 1 {
		return errors.New(errors.ErrCodeSerialization, "direct_url.json needs a url and exactly one of archive_info, dir_info and vcs_info")
	}
	return nil
}

// MarshalPython encodes d byte for byte like Python's
// json.dumps(d, sort_keys=True): ", " and ": " separators, sorted keys and
// every non-ASCII character escaped.
func (d *DirectURL) MarshalPython() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerialization, err, "Failed to serialize direct_url.json")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSerialization, err, "Failed to serialize direct_url.json")
	}

	var buf bytes.Buffer
	if err := writePythonJSON(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePythonJSON(buf *bytes.Buffer, v any) error {
	switch v := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(v.String())
	case string:
		writePythonString(buf, v)
	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writePythonJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writePythonString(buf, k)
			buf.WriteString(": ")
			if err := writePythonJSON(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.New(errors.ErrCodeSerialization, "Failed to serialize direct_url.json: unexpected %T", v)
	}
	return nil
}

// writePythonString quotes s with ensure_ascii semantics.
func writePythonString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r < 0x20 || r > 0x7e:
			if r > 0xffff {
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			} else {
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
