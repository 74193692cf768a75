package tags

import (
	"path/filepath"
	"strings"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// WheelFilename is the parsed form of
// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl.
type WheelFilename struct {
	Distribution string
	Version      string
	BuildTag     string
	PythonTags   []string
	ABITags      []string
	PlatformTags []string
}

// ParseWheelFilename parses a wheel file name. Directory components are
// ignored.
func ParseWheelFilename(name string) (*WheelFilename, error) {
	base := filepath.Base(name)
	stem, ok := strings.CutSuffix(base, ".whl")
	if !ok {
		return nil, invalidFilename(base, "Must end with .whl")
	}

	parts := strings.Split(stem, "-")
	wf := &WheelFilename{}
	switch len(parts) {
	case 5:
		wf.Distribution, wf.Version = parts[0], parts[1]
	case 6:
		wf.Distribution, wf.Version, wf.BuildTag = parts[0], parts[1], parts[2]
		if wf.BuildTag == "" || wf.BuildTag[0] < '0' || wf.BuildTag[0] > '9' {
			return nil, invalidFilename(base, "The build tag must start with a digit")
		}
	default:
		return nil, invalidFilename(base, "Expected four \"-\" in the filename, or five with a build tag")
	}

	tagSets := parts[len(parts)-3:]
	for _, part := range append([]string{wf.Distribution, wf.Version}, tagSets...) {
		if part == "" {
			return nil, invalidFilename(base, "Empty filename component")
		}
	}
	// Distribution and version become directory names in monotrail stores.
	if err := errors.ValidatePythonPackageName(wf.Distribution); err != nil {
		return nil, invalidFilename(base, errors.UserMessage(err))
	}
	if err := errors.ValidatePackageName(wf.Version); err != nil {
		return nil, invalidFilename(base, "Invalid version: "+errors.UserMessage(err))
	}
	wf.PythonTags = strings.Split(tagSets[0], ".")
	wf.ABITags = strings.Split(tagSets[1], ".")
	wf.PlatformTags = strings.Split(tagSets[2], ".")
	return wf, nil
}

func invalidFilename(name, reason string) error {
	return errors.New(errors.ErrCodeInvalidFilename, "The wheel filename %q is invalid: %s", name, reason)
}

// String reassembles the file name.
func (w *WheelFilename) String() string {
	parts := []string{w.Distribution, w.Version}
	if w.BuildTag != "" {
		parts = append(parts, w.BuildTag)
	}
	parts = append(parts,
		strings.Join(w.PythonTags, "."),
		strings.Join(w.ABITags, "."),
		strings.Join(w.PlatformTags, "."),
	)
	return strings.Join(parts, "-") + ".whl"
}

// Tags expands the compressed tag sets into every tag the wheel supports.
func (w *WheelFilename) Tags() []Tag {
	out := make([]Tag, 0, len(w.PythonTags)*len(w.ABITags)*len(w.PlatformTags))
	for _, py := range w.PythonTags {
		for _, abi := range w.ABITags {
			for _, plat := range w.PlatformTags {
				out = append(out, Tag{Python: py, ABI: abi, Platform: plat})
			}
		}
	}
	return out
}

// Rank returns the priority of the best tag of w in ct, lower being
// better, together with that tag. A wheel without any tag in ct yields an
// *IncompatibleWheelError.
func (w *WheelFilename) Rank(ct *CompatibleTags) (int, Tag, error) {
	best, bestTag := -1, Tag{}
	for _, tag := range w.Tags() {
		if rank, ok := ct.index[tag]; ok && (best < 0 || rank < best) {
			best, bestTag = rank, tag
		}
	}
	if best < 0 {
		return 0, Tag{}, &IncompatibleWheelError{Os: ct.Platform.Os, Arch: ct.Platform.Arch}
	}
	return best, bestTag, nil
}

// IsCompatible reports whether any tag of w is in ct.
func (w *WheelFilename) IsCompatible(ct *CompatibleTags) bool {
	_, _, err := w.Rank(ct)
	return err == nil
}
