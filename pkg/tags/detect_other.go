//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package tags

import (
	"runtime"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

func detectPlatform() (Platform, error) {
	return Platform{}, errors.New(errors.ErrCodePlatformDetect, "unsupported operating system %s", runtime.GOOS)
}
