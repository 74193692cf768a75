package wheel

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/location"
)

// InstallInVenv installs a single wheel into the virtualenv at venvPath and
// returns the compatibility tag it was installed under. Launcher scripts
// run interpreter. The venv is locked for the duration and a second
// concurrent install fails instead of waiting.
func InstallInVenv(ctx context.Context, wheelPath, venvPath, interpreter string, major, minor int) (string, error) {
	root, err := filepath.Abs(venvPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to resolve %s", venvPath)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	loc := location.Venv{Root: root, PythonMajor: major, PythonMinor: minor}
	locked, err := location.AcquireLock(ctx, loc, location.FailFast)
	if err != nil {
		return "", err
	}
	defer locked.Release()

	sum, err := FileSHA256(wheelPath)
	if err != nil {
		return "", err
	}
	directURL, err := ArchiveDirectURL(wheelPath, sum)
	if err != nil {
		return "", err
	}

	res, err := Install(ctx, locked, wheelPath, Options{
		Requested:   true,
		DirectURL:   directURL,
		Interpreter: interpreter,
	})
	if err != nil {
		return "", err
	}
	return res.Tag.String(), nil
}
