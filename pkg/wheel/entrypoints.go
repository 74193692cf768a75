package wheel

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// EntryPoint is a console or GUI script declared in entry_points.txt.
type EntryPoint struct {
	Name     string
	Module   string
	Function string
	Extras   []string
	GUI      bool
}

// entryPointValue matches "module.path:object.attr [extra1, extra2]".
var entryPointValue = regexp.MustCompile(`^([\w.]+)\s*:\s*([\w.]+)\s*(?:\[([^\]]*)\])?$`)

// ParseEntryPoints reads the console_scripts and gui_scripts sections of an
// entry_points.txt file. Other sections are ignored.
func ParseEntryPoints(r io.Reader) ([]EntryPoint, error) {
	var out []EntryPoint
	section := ""
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";"):
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		if section != "console_scripts" && section != "gui_scripts" {
			continue
		}

		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidWheel, "entry_points.txt line %d: expected 'name = module:function', got %q", lineNo, line)
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		m := entryPointValue.FindStringSubmatch(value)
		if name == "" || m == nil {
			return nil, errors.New(errors.ErrCodeInvalidWheel, "entry_points.txt line %d: invalid entry point %q", lineNo, line)
		}

		ep := EntryPoint{Name: name, Module: m[1], Function: m[2], GUI: section == "gui_scripts"}
		for _, extra := range strings.Split(m[3], ",") {
			if extra = strings.TrimSpace(extra); extra != "" {
				ep.Extras = append(ep.Extras, extra)
			}
		}
		out = append(out, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWheel, err, "failed to read entry_points.txt")
	}
	return out, nil
}
