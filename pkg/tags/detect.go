package tags

import (
	"os/exec"
	"strings"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// DetectPlatform reports the operating system and architecture of the
// running machine.
func DetectPlatform() (Platform, error) {
	return detectPlatform()
}

// detectLibc asks the system ldd which C library it belongs to. musl's ldd
// exits non-zero for --version, so the exit status is not checked when
// there is output to inspect.
func detectLibc() (Os, error) {
	out, err := exec.Command("ldd", "--version").CombinedOutput()
	if strings.TrimSpace(string(out)) == "" {
		if err == nil {
			err = errors.New(errors.ErrCodePlatformDetect, "ldd printed nothing")
		}
		return Os{}, errors.Wrap(errors.ErrCodePlatformDetect, err, "failed to determine the libc version")
	}
	return parseLddVersion(string(out))
}
