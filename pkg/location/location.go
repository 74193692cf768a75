// Package location describes the environments wheels are installed into
// and guards them with an exclusive lock.
//
// Two kinds of environment exist. A Venv is a regular virtual environment
// with one site-packages directory. A Monotrail root stores every version
// of every distribution side by side under <root>/<name>/<version>, so its
// launcher scripts cannot embed an absolute interpreter path.
//
// Nothing may be written into a location without first holding its
// LockedDir:
//
//	locked, err := location.AcquireLock(ctx, location.Venv{Root: root, PythonMajor: 3, PythonMinor: 11}, location.FailFast)
//	if err != nil {
//	    return err
//	}
//	defer locked.Release()
package location

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/matzehuels/wheelsmith/pkg/pep508"
)

// InstallLocation is an environment wheels can be installed into.
// The set of implementations is closed: Venv and Monotrail.
type InstallLocation interface {
	// Dir is the environment's base directory.
	Dir() string
	PythonVersion() (major, minor int)
	sealed()
}

// Venv is a virtual environment.
type Venv struct {
	Root        string
	PythonMajor int
	PythonMinor int
}

func (v Venv) Dir() string                       { return v.Root }
func (v Venv) PythonVersion() (major, minor int) { return v.PythonMajor, v.PythonMinor }
func (Venv) sealed()                             {}

// Monotrail is a multi-version store. Python is the interpreter the
// installed code runs with.
type Monotrail struct {
	Root        string
	Python      string
	PythonMajor int
	PythonMinor int
}

func (m Monotrail) Dir() string                       { return m.Root }
func (m Monotrail) PythonVersion() (major, minor int) { return m.PythonMajor, m.PythonMinor }
func (Monotrail) sealed()                             {}

// Layout holds the directories the files of one distribution go to.
type Layout struct {
	Purelib string
	Platlib string
	Scripts string
	Data    string
	Headers string
}

// LayoutFor returns where the distribution name==version is installed in loc.
func LayoutFor(loc InstallLocation, name, version string) Layout {
	major, minor := loc.PythonVersion()
	var base string
	switch l := loc.(type) {
	case Venv:
		base = l.Root
	case Monotrail:
		base = filepath.Join(l.Root, NormalizeName(name), version)
	default:
		panic(fmt.Sprintf("location: unknown install location %T", loc))
	}
	site := sitePackages(base, major, minor)
	return Layout{
		Purelib: site,
		Platlib: site,
		Scripts: scriptsDir(base),
		Data:    base,
		Headers: filepath.Join(base, "include", "site", fmt.Sprintf("python%d.%d", major, minor), name),
	}
}

// RecordBase is the directory RECORD paths of an installed distribution
// are relative to.
func RecordBase(loc InstallLocation, name, version string) string {
	return LayoutFor(loc, name, version).Purelib
}

// Interpreter returns the python executable of loc.
func Interpreter(loc InstallLocation) string {
	switch l := loc.(type) {
	case Venv:
		if runtime.GOOS == "windows" {
			return filepath.Join(l.Root, "Scripts", "python.exe")
		}
		return filepath.Join(l.Root, "bin", "python")
	case Monotrail:
		return l.Python
	default:
		panic(fmt.Sprintf("location: unknown install location %T", loc))
	}
}

// Relocatable reports whether launcher scripts must locate the interpreter
// at run time instead of embedding its path.
func Relocatable(loc InstallLocation) bool {
	_, ok := loc.(Monotrail)
	return ok
}

// NormalizeName returns the PEP 503 form of a distribution name.
func NormalizeName(name string) string {
	return pep508.NormalizeName(name)
}

func sitePackages(base string, major, minor int) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(base, "Lib", "site-packages")
	}
	return filepath.Join(base, "lib", fmt.Sprintf("python%d.%d", major, minor), "site-packages")
}

func scriptsDir(base string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(base, "Scripts")
	}
	return filepath.Join(base, "bin")
}
