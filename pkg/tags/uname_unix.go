//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package tags

import (
	"golang.org/x/sys/unix"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// uname returns the machine and kernel release of the running system.
func uname() (machine, release string, err error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", "", errors.Wrap(errors.ErrCodePlatformDetect, err, "uname failed")
	}
	return unix.ByteSliceToString(u.Machine[:]), unix.ByteSliceToString(u.Release[:]), nil
}
