package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelsmith/pkg/buildinfo"
	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/location"
	"github.com/matzehuels/wheelsmith/pkg/wheel"
)

// installOpts holds the command-line flags for the install command.
type installOpts struct {
	venv          string
	monotrail     string
	python        string
	pythonVersion string
	wait          bool
	requested     bool
	refresh       bool
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	opts := installOpts{requested: true}

	cmd := &cobra.Command{
		Use:   "install <wheel>...",
		Short: "Install wheels into a virtualenv or monotrail store",
		Long: `Install one or more wheel files. Every file in a wheel is checked against
its RECORD before anything is written, and a failed install leaves the
environment as it was. The environment is locked while installing.`,
		Example: `  wheelsmith install --venv .venv dist/tqdm-4.62.3-py2.py3-none-any.whl
  wheelsmith install --monotrail ~/.monotrail --python /usr/bin/python3.11 *.whl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.venv, "venv", "", "virtualenv to install into")
	cmd.Flags().StringVar(&opts.monotrail, "monotrail", "", "monotrail store to install into")
	cmd.Flags().StringVar(&opts.python, "python", "", "interpreter launcher scripts should run")
	cmd.Flags().StringVar(&opts.pythonVersion, "python-version", "", "target python version as major.minor (default from the venv's pyvenv.cfg)")
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "wait for the environment lock instead of failing")
	cmd.Flags().BoolVar(&opts.requested, "requested", opts.requested, "mark the distributions as requested by the user")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "detect the platform again instead of using the cache")
	cmd.MarkFlagsMutuallyExclusive("venv", "monotrail")
	cmd.MarkFlagsOneRequired("venv", "monotrail")

	return cmd
}

func (c *CLI) runInstall(ctx context.Context, wheels []string, opts installOpts) error {
	loc, err := opts.location()
	if err != nil {
		return err
	}
	major, minor := loc.PythonVersion()

	ct, err := c.compatibleTags(ctx, major, minor, opts.refresh)
	if err != nil {
		return err
	}

	policy := c.Config.LockPolicy()
	if opts.wait {
		policy = location.Wait
	}
	lockCtx := ctx
	if timeout := c.Config.Install.LockTimeout.Duration; policy == location.Wait && timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	installer := c.Config.Install.Installer
	if installer == "" {
		installer = buildinfo.UserAgent()
	}

	return location.WithLock(lockCtx, loc, policy, func(locked *location.LockedDir) error {
		prog := newProgress(c.Logger)
		var total int64
		for _, path := range wheels {
			res, err := c.installOne(ctx, locked, path, wheel.Options{
				Tags:        ct,
				Installer:   installer,
				Requested:   opts.requested,
				Interpreter: opts.python,
				Logger:      c.Logger,
			})
			if err != nil {
				return err
			}
			total += res.Bytes
			printInstalled(res)
		}
		prog.done(fmt.Sprintf("Installed %d wheels (%s) into %s", len(wheels), humanize.Bytes(uint64(total)), locked.Dir()))
		return nil
	})
}

func (c *CLI) installOne(ctx context.Context, locked *location.LockedDir, path string, opts wheel.Options) (*wheel.Result, error) {
	sum, err := wheel.FileSHA256(path)
	if err != nil {
		return nil, err
	}
	if opts.DirectURL, err = wheel.ArchiveDirectURL(path, sum); err != nil {
		return nil, err
	}
	return wheel.Install(ctx, locked, path, opts)
}

// location builds the install location named by the flags.
func (o installOpts) location() (location.InstallLocation, error) {
	if o.monotrail != "" {
		if o.python == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "--monotrail needs --python")
		}
		if o.pythonVersion == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "--monotrail needs --python-version")
		}
		major, minor, err := parsePythonVersion(o.pythonVersion)
		if err != nil {
			return nil, err
		}
		root, err := filepath.Abs(o.monotrail)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to resolve %s", o.monotrail)
		}
		return location.Monotrail{Root: root, Python: o.python, PythonMajor: major, PythonMinor: minor}, nil
	}

	root, err := filepath.Abs(o.venv)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to resolve %s", o.venv)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	version := o.pythonVersion
	if version == "" {
		if version, err = pyvenvVersion(root); err != nil {
			return nil, err
		}
	}
	major, minor, err := parsePythonVersion(version)
	if err != nil {
		return nil, err
	}
	return location.Venv{Root: root, PythonMajor: major, PythonMinor: minor}, nil
}

// parsePythonVersion parses "3.11" or "3.11.4" into major and minor.
func parsePythonVersion(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "invalid python version %q, expected major.minor", s)
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || major < 0 || minor < 0 {
		return 0, 0, errors.New(errors.ErrCodeInvalidInput, "invalid python version %q, expected major.minor", s)
	}
	return major, minor, nil
}

// pyvenvVersion reads the python version from the venv's pyvenv.cfg.
func pyvenvVersion(root string) (string, error) {
	cfgPath := filepath.Join(root, "pyvenv.cfg")
	f, err := os.Open(cfgPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBrokenEnv, err, "cannot determine the python version of %s, pass --python-version", root)
	}
	defer f.Close()

	values := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if ok {
			values[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	for _, key := range []string{"version", "version_info"} {
		if v := values[key]; v != "" {
			return v, nil
		}
	}
	return "", errors.New(errors.ErrCodeBrokenEnv, "%s has no version key, pass --python-version", cfgPath)
}
