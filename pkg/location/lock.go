package location

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/observability"
)

// LockFileName is the advisory lock file created in every location root.
const LockFileName = ".lock"

// lockRetryDelay is how often a waiting acquisition polls the lock.
const lockRetryDelay = 100 * time.Millisecond

// LockPolicy decides what happens when another process holds the lock.
type LockPolicy int

const (
	// FailFast returns an ErrCodeLocked error immediately.
	FailFast LockPolicy = iota
	// Wait blocks until the lock is free or the context is done.
	Wait
)

func (p LockPolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Wait:
		return "wait"
	default:
		return fmt.Sprintf("LockPolicy(%d)", int(p))
	}
}

// ParseLockPolicy parses "fail-fast" or "wait".
func ParseLockPolicy(s string) (LockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "wait", "block":
		return Wait, nil
	default:
		return 0, errors.New(errors.ErrCodeInvalidInput, "unknown lock policy %q (want fail-fast or wait)", s)
	}
}

// LockedDir proves exclusive write access to an install location until
// Release is called. The operating system drops the lock if the process
// dies first.
type LockedDir struct {
	Location InstallLocation
	lock     *flock.Flock
}

// Dir returns the locked location's base directory.
func (d *LockedDir) Dir() string { return d.Location.Dir() }

// Held reports whether d still holds its lock.
func (d *LockedDir) Held() bool {
	return d != nil && d.lock != nil && d.lock.Locked()
}

// Release gives up the lock. Calling it more than once is harmless.
func (d *LockedDir) Release() error {
	if d == nil || d.lock == nil {
		return nil
	}
	err := d.lock.Close()
	d.lock = nil
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to release %s", filepath.Join(d.Dir(), LockFileName))
	}
	return nil
}

// AcquireLock checks that loc is a usable environment and locks it.
func AcquireLock(ctx context.Context, loc InstallLocation, policy LockPolicy) (*LockedDir, error) {
	if err := validate(loc); err != nil {
		return nil, err
	}

	path := filepath.Join(loc.Dir(), LockFileName)
	lock := flock.New(path)
	start := time.Now()

	var locked bool
	var err error
	switch policy {
	case Wait:
		locked, err = lock.TryLockContext(ctx, lockRetryDelay)
	default:
		locked, err = lock.TryLock()
	}
	if err != nil {
		lock.Close()
		return nil, errors.Wrap(errors.ErrCodeLocked, err, "failed to lock %s", loc.Dir())
	}
	if !locked {
		lock.Close()
		return nil, errors.New(errors.ErrCodeLocked, "%s is locked by another process", loc.Dir())
	}

	observability.Install().OnLockAcquired(ctx, loc.Dir(), time.Since(start))
	return &LockedDir{Location: loc, lock: lock}, nil
}

// WithLock runs fn while holding the lock of loc.
func WithLock(ctx context.Context, loc InstallLocation, policy LockPolicy, fn func(*LockedDir) error) (err error) {
	locked, err := AcquireLock(ctx, loc, policy)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := locked.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(locked)
}

func validate(loc InstallLocation) error {
	switch l := loc.(type) {
	case Venv:
		if err := requireDir(l.Root); err != nil {
			return brokenVenv(err)
		}
		site := sitePackages(l.Root, l.PythonMajor, l.PythonMinor)
		if err := requireDir(site); err != nil {
			return brokenVenv(err)
		}
		if err := requireFile(Interpreter(l)); err != nil {
			return brokenVenv(err)
		}
	case Monotrail:
		if err := os.MkdirAll(l.Root, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "failed to create %s", l.Root)
		}
		if err := requireFile(l.Python); err != nil {
			return errors.Wrap(errors.ErrCodeBrokenEnv, err, "Broken monotrail root %s", l.Root)
		}
	default:
		return errors.New(errors.ErrCodeInternal, "unknown install location %T", loc)
	}
	return nil
}

func brokenVenv(err error) error {
	return errors.Wrap(errors.ErrCodeBrokenEnv, err, "Broken virtualenv")
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("no interpreter configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
