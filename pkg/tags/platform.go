package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// OsName identifies an operating system family.
type OsName string

const (
	Manylinux OsName = "manylinux"
	Musllinux OsName = "musllinux"
	Windows   OsName = "windows"
	MacOS     OsName = "macos"
	FreeBSD   OsName = "freebsd"
	NetBSD    OsName = "netbsd"
	OpenBSD   OsName = "openbsd"
	Dragonfly OsName = "dragonfly"
)

// Os is an operating system together with the version information that
// matters for tag selection: the glibc or musl version on Linux, the
// product version on macOS and the kernel release on the BSDs.
type Os struct {
	Name    OsName `json:"name"`
	Major   int    `json:"major,omitempty"`
	Minor   int    `json:"minor,omitempty"`
	Release string `json:"release,omitempty"`
}

func (o Os) String() string {
	switch o.Name {
	case Manylinux, Musllinux, MacOS:
		return fmt.Sprintf("%s %d.%d", o.Name, o.Major, o.Minor)
	case Windows:
		return string(o.Name)
	default:
		return fmt.Sprintf("%s %s", o.Name, o.Release)
	}
}

// Arch is a CPU architecture, named the way Linux wheels name it.
type Arch string

const (
	X86_64  Arch = "x86_64"
	X86     Arch = "i686"
	Aarch64 Arch = "aarch64"
	Armv7L  Arch = "armv7l"
	Ppc64   Arch = "ppc64"
	Ppc64le Arch = "ppc64le"
	S390X   Arch = "s390x"
)

// ParseArch maps a machine name as reported by uname or GOARCH to an Arch.
func ParseArch(machine string) (Arch, error) {
	switch strings.ToLower(machine) {
	case "x86_64", "amd64":
		return X86_64, nil
	case "i386", "i486", "i586", "i686", "x86", "386":
		return X86, nil
	case "aarch64", "arm64":
		return Aarch64, nil
	case "armv7l", "armv7", "arm":
		return Armv7L, nil
	case "ppc64":
		return Ppc64, nil
	case "ppc64le":
		return Ppc64le, nil
	case "s390x":
		return S390X, nil
	default:
		return "", errors.New(errors.ErrCodePlatformDetect, "unsupported architecture %q", machine)
	}
}

// Platform is the operating system and architecture wheels are selected for.
type Platform struct {
	Os   Os   `json:"os"`
	Arch Arch `json:"arch"`
}

func (p Platform) String() string {
	return fmt.Sprintf("%s %s", p.Os, p.Arch)
}

// Tags returns the platform tags p accepts, most specific first.
func (p Platform) Tags() ([]string, error) {
	switch p.Os.Name {
	case Manylinux:
		return p.manylinuxTags(), nil
	case Musllinux:
		tags := make([]string, 0, p.Os.Minor+2)
		for minor := p.Os.Minor; minor >= 0; minor-- {
			tags = append(tags, fmt.Sprintf("musllinux_%d_%d_%s", p.Os.Major, minor, p.Arch))
		}
		return append(tags, "linux_"+string(p.Arch)), nil
	case MacOS:
		return p.macTags(), nil
	case Windows:
		switch p.Arch {
		case X86_64:
			return []string{"win_amd64"}, nil
		case X86:
			return []string{"win32"}, nil
		case Aarch64:
			return []string{"win_arm64"}, nil
		}
	case FreeBSD, NetBSD, OpenBSD, Dragonfly:
		release := strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToLower(p.Os.Release))
		return []string{fmt.Sprintf("%s_%s_%s", p.Os.Name, release, p.Arch)}, nil
	}
	return nil, errors.New(errors.ErrCodePlatformDetect, "unsupported platform %s", p)
}

// manylinuxTags follows PEP 600: every glibc 2.x down to the oldest one
// the architecture was ever built for, each followed by its legacy alias.
func (p Platform) manylinuxTags() []string {
	// x86 wheels go back to glibc 2.5, everything else to 2.17.
	oldest := 17
	if p.Arch == X86_64 || p.Arch == X86 {
		oldest = 5
	}
	var tags []string
	for minor := p.Os.Minor; minor >= oldest && p.Os.Major == 2; minor-- {
		tags = append(tags, fmt.Sprintf("manylinux_2_%d_%s", minor, p.Arch))
		if alias := legacyManylinux(minor, p.Arch); alias != "" {
			tags = append(tags, alias+"_"+string(p.Arch))
		}
	}
	return append(tags, "linux_"+string(p.Arch))
}

func legacyManylinux(glibcMinor int, arch Arch) string {
	switch glibcMinor {
	case 17:
		switch arch {
		case X86_64, X86, Aarch64, Armv7L, Ppc64, Ppc64le, S390X:
			return "manylinux2014"
		}
	case 12:
		if arch == X86_64 || arch == X86 {
			return "manylinux2010"
		}
	case 5:
		if arch == X86_64 || arch == X86 {
			return "manylinux1"
		}
	}
	return ""
}

func (p Platform) macTags() []string {
	arch := string(p.Arch)
	if p.Arch == Aarch64 {
		arch = "arm64"
	}
	var tags []string
	emit := func(major, minor int, formats []string) {
		for _, format := range formats {
			tags = append(tags, fmt.Sprintf("macosx_%d_%d_%s", major, minor, format))
		}
	}

	if p.Os.Major == 10 {
		for minor := p.Os.Minor; minor >= 0; minor-- {
			emit(10, minor, macBinaryFormats(10, minor, arch))
		}
	}
	if p.Os.Major >= 11 {
		for major := p.Os.Major; major >= 11; major-- {
			emit(major, 0, macBinaryFormats(major, 0, arch))
		}
		// Universal binaries built on 10.x still run on Apple silicon.
		for minor := 16; minor >= 4; minor-- {
			if arch == "x86_64" {
				emit(10, minor, macBinaryFormats(10, minor, arch))
			} else {
				emit(10, minor, []string{"universal2"})
			}
		}
	}
	return tags
}

func macBinaryFormats(major, minor int, arch string) []string {
	formats := []string{arch}
	if arch == "x86_64" {
		if major == 10 && minor < 4 {
			return nil
		}
		formats = append(formats, "intel", "fat64", "fat32")
	}
	if arch == "arm64" || arch == "x86_64" {
		formats = append(formats, "universal2")
	}
	if arch == "x86_64" || arch == "i386" {
		formats = append(formats, "universal")
	}
	return formats
}

var (
	muslVersion  = regexp.MustCompile(`(?m)^Version (\d+)\.(\d+)`)
	glibcVersion = regexp.MustCompile(`(\d+)\.(\d+)\s*$`)
)

// parseLddVersion interprets the output of `ldd --version`, which names
// the C library the system links against.
func parseLddVersion(output string) (Os, error) {
	firstLine, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	lower := strings.ToLower(output)

	if strings.Contains(lower, "musl") {
		m := muslVersion.FindStringSubmatch(output)
		if m == nil {
			return Os{}, errors.New(errors.ErrCodePlatformDetect, "no musl version in ldd output: %q", firstLine)
		}
		return Os{Name: Musllinux, Major: atoi(m[1]), Minor: atoi(m[2])}, nil
	}
	if strings.Contains(strings.ToLower(firstLine), "glibc") || strings.Contains(strings.ToLower(firstLine), "gnu libc") {
		m := glibcVersion.FindStringSubmatch(firstLine)
		if m == nil {
			return Os{}, errors.New(errors.ErrCodePlatformDetect, "no glibc version in ldd output: %q", firstLine)
		}
		return Os{Name: Manylinux, Major: atoi(m[1]), Minor: atoi(m[2])}, nil
	}
	return Os{}, errors.New(errors.ErrCodePlatformDetect, "unknown libc in ldd output: %q", firstLine)
}

// parseMacVersion parses a product version such as "14.2.1".
func parseMacVersion(v string) (Os, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Os{}, errors.Wrap(errors.ErrCodePlatformDetect, err, "invalid macOS version %q", v)
	}
	minor := 0
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			return Os{}, errors.Wrap(errors.ErrCodePlatformDetect, err, "invalid macOS version %q", v)
		}
	}
	return Os{Name: MacOS, Major: major, Minor: minor}, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
