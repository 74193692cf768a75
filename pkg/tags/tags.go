// Package tags decides which wheels can be installed on the running
// interpreter and platform.
//
// A wheel declares its compatibility through the (python, abi, platform)
// tags in its file name. NewCompatibleTags lists every tag the current
// environment accepts in order of preference, following the ordering pip
// uses for CPython, and WheelFilename.Rank looks a wheel up in that list.
//
//	platform, err := tags.DetectPlatform()
//	ct, err := tags.NewCompatibleTags(3, 11, platform)
//	wf, err := tags.ParseWheelFilename("tqdm-4.62.3-py2.py3-none-any.whl")
//	rank, tag, err := wf.Rank(ct)
package tags

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// Tag is a single (python, abi, platform) compatibility tag.
type Tag struct {
	Python   string `json:"python"`
	ABI      string `json:"abi"`
	Platform string `json:"platform"`
}

func (t Tag) String() string {
	return t.Python + "-" + t.ABI + "-" + t.Platform
}

// CompatibleTags is the priority ordered list of tags an environment
// accepts. Index 0 is the most preferred tag.
type CompatibleTags struct {
	Platform Platform
	Tags     []Tag
	index    map[Tag]int
}

// NewCompatibleTags lists the tags accepted by CPython major.minor on p.
func NewCompatibleTags(major, minor int, p Platform) (*CompatibleTags, error) {
	if major != 3 {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported python version %d.%d: only python 3 is supported", major, minor)
	}
	if minor < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid python minor version %d", minor)
	}
	platformTags, err := p.Tags()
	if err != nil {
		return nil, err
	}

	interpreter := fmt.Sprintf("cp%d%d", major, minor)
	var out []Tag
	add := func(python, abi string, platforms ...string) {
		for _, plat := range platforms {
			out = append(out, Tag{Python: python, ABI: abi, Platform: plat})
		}
	}

	add(interpreter, interpreter, platformTags...)
	// abi3 exists since 3.2.
	abi3 := minor >= 2
	if abi3 {
		add(interpreter, "abi3", platformTags...)
	}
	add(interpreter, "none", platformTags...)
	if abi3 {
		for m := minor - 1; m >= 2; m-- {
			add(fmt.Sprintf("cp%d%d", major, m), "abi3", platformTags...)
		}
	}

	pyVersions := pythonVersions(major, minor)
	for _, py := range pyVersions {
		add(py, "none", platformTags...)
	}
	add(interpreter, "none", "any")
	for _, py := range pyVersions {
		add(py, "none", "any")
	}

	ct := &CompatibleTags{Platform: p, Tags: out, index: make(map[Tag]int, len(out))}
	for i, tag := range out {
		if _, seen := ct.index[tag]; !seen {
			ct.index[tag] = i
		}
	}
	return ct, nil
}

// pythonVersions returns pyXY, pyX and then every older pyXW.
func pythonVersions(major, minor int) []string {
	out := []string{fmt.Sprintf("py%d%d", major, minor), fmt.Sprintf("py%d", major)}
	for m := minor - 1; m >= 0; m-- {
		out = append(out, fmt.Sprintf("py%d%d", major, m))
	}
	return out
}

// Contains reports whether tag is accepted.
func (ct *CompatibleTags) Contains(tag Tag) bool {
	_, ok := ct.index[tag]
	return ok
}

// Best returns the wheel with the most preferred tag. Ties keep the
// earlier wheel.
func Best(wheels []*WheelFilename, ct *CompatibleTags) (*WheelFilename, Tag, error) {
	type ranked struct {
		wheel *WheelFilename
		rank  int
		tag   Tag
	}
	candidates := lo.FilterMap(wheels, func(w *WheelFilename, _ int) (ranked, bool) {
		rank, tag, err := w.Rank(ct)
		return ranked{wheel: w, rank: rank, tag: tag}, err == nil
	})
	if len(candidates) == 0 {
		return nil, Tag{}, &IncompatibleWheelError{Os: ct.Platform.Os, Arch: ct.Platform.Arch}
	}
	best := lo.MinBy(candidates, func(a, b ranked) bool { return a.rank < b.rank })
	return best.wheel, best.tag, nil
}
