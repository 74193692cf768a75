//go:build freebsd || netbsd || openbsd || dragonfly

package tags

import "runtime"

func detectPlatform() (Platform, error) {
	machine, release, err := uname()
	if err != nil {
		return Platform{}, err
	}
	arch, err := ParseArch(machine)
	if err != nil {
		return Platform{}, err
	}
	return Platform{Os: Os{Name: OsName(runtime.GOOS), Release: release}, Arch: arch}, nil
}
