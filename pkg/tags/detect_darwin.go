//go:build darwin

package tags

import (
	"golang.org/x/sys/unix"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

func detectPlatform() (Platform, error) {
	machine, _, err := uname()
	if err != nil {
		return Platform{}, err
	}
	arch, err := ParseArch(machine)
	if err != nil {
		return Platform{}, err
	}
	version, err := unix.Sysctl("kern.osproductversion")
	if err != nil {
		return Platform{}, errors.Wrap(errors.ErrCodePlatformDetect, err, "failed to read the macOS version")
	}
	os, err := parseMacVersion(version)
	if err != nil {
		return Platform{}, err
	}
	return Platform{Os: os, Arch: arch}, nil
}
