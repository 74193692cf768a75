//go:build linux

package tags

func detectPlatform() (Platform, error) {
	machine, _, err := uname()
	if err != nil {
		return Platform{}, err
	}
	arch, err := ParseArch(machine)
	if err != nil {
		return Platform{}, err
	}
	os, err := detectLibc()
	if err != nil {
		return Platform{}, err
	}
	return Platform{Os: os, Arch: arch}, nil
}
