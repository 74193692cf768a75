//go:build windows

package tags

import "runtime"

func detectPlatform() (Platform, error) {
	arch, err := ParseArch(runtime.GOARCH)
	if err != nil {
		return Platform{}, err
	}
	return Platform{Os: Os{Name: Windows}, Arch: arch}, nil
}
