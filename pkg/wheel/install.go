// Package wheel installs built distributions (.whl files) into an install
// location.
//
// An install reads the archive's RECORD, verifies every member against it
// while copying into a staging directory, generates launcher scripts for
// declared entry points, writes the installer metadata (INSTALLER,
// REQUESTED, direct_url.json and a fresh RECORD) and finally moves
// everything into place. The location must be locked by the caller:
//
//	locked, err := location.AcquireLock(ctx, venv, location.FailFast)
//	if err != nil {
//	    return err
//	}
//	defer locked.Release()
//	res, err := wheel.Install(ctx, locked, "tqdm-4.62.3-py2.py3-none-any.whl", wheel.Options{})
//
// Bytecode is not compiled.
package wheel

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelsmith/pkg/errors"
	"github.com/matzehuels/wheelsmith/pkg/location"
	"github.com/matzehuels/wheelsmith/pkg/observability"
	"github.com/matzehuels/wheelsmith/pkg/tags"
)

// DefaultInstaller is written to INSTALLER when Options.Installer is empty.
const DefaultInstaller = "wheelsmith"

const stagePattern = ".wheelsmith-stage-*"

// Options configures Install.
type Options struct {
	// Tags are the tags the target interpreter accepts. When nil they are
	// computed from the running platform and the location's python version.
	Tags *tags.CompatibleTags
	// Installer is recorded in the INSTALLER metadata file.
	Installer string
	// Requested marks the distribution as directly requested by the user
	// by writing an empty REQUESTED file.
	Requested bool
	// DirectURL, when set, is written to direct_url.json.
	DirectURL *DirectURL
	// Interpreter overrides the python executable that scripts point at.
	// It is ignored for relocatable locations.
	Interpreter string
	Logger      *log.Logger
}

// Result describes a finished install.
type Result struct {
	Tag     tags.Tag
	Name    string
	Version string
	Files   int
	Bytes   int64
}

// Install verifies the wheel at wheelPath against its RECORD and installs
// it into the locked location.
//
// Every file is first written to a staging directory inside the location,
// checked against its RECORD hash on the way. Only when the whole archive
// has been verified are the staged files moved into place. If moving fails
// part way, the files already moved are removed and any files they replaced
// are restored.
func Install(ctx context.Context, locked *location.LockedDir, wheelPath string, opts Options) (res *Result, err error) {
	if !locked.Held() {
		return nil, errors.New(errors.ErrCodeLocked, "Install needs a held lock on the location")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	hooks := observability.Install()
	start := time.Now()
	hooks.OnInstallStart(ctx, wheelPath, locked.Dir())
	defer func() {
		tag, files := "", 0
		if res != nil {
			tag, files = res.Tag.String(), res.Files
		}
		hooks.OnInstallComplete(ctx, wheelPath, tag, files, time.Since(start), err)
	}()

	wf, err := tags.ParseWheelFilename(wheelPath)
	if err != nil {
		return nil, err
	}
	ct := opts.Tags
	if ct == nil {
		if ct, err = currentTags(locked.Location); err != nil {
			return nil, err
		}
	}
	_, tag, err := wf.Rank(ct)
	if err != nil {
		return nil, err
	}
	logger.Debug("selected tag", "wheel", filepath.Base(wheelPath), "tag", tag)

	zr, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "Failed to read the wheel file %s", wheelPath)
	}
	defer zr.Close()

	a, err := openArchive(&zr.Reader, wf)
	if err != nil {
		return nil, err
	}

	inst := &installer{
		ctx:     ctx,
		loc:     locked.Location,
		wheel:   wf,
		archive: a,
		layout:  location.LayoutFor(locked.Location, wf.Distribution, wf.Version),
		opts:    opts,
		logger:  logger,
		dests:   map[string]int{},
	}
	interpreter := opts.Interpreter
	if interpreter == "" {
		interpreter = location.Interpreter(locked.Location)
	}
	inst.shebang = Shebang(interpreter, location.Relocatable(locked.Location))
	if a.rootIsPurelib {
		inst.root = inst.layout.Purelib
	} else {
		inst.root = inst.layout.Platlib
	}

	if inst.stageDir, err = os.MkdirTemp(locked.Dir(), stagePattern); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "failed to create a staging directory in %s", locked.Dir())
	}
	defer os.RemoveAll(inst.stageDir)

	if err := inst.stage(); err != nil {
		return nil, err
	}
	if err := inst.commit(wheelPath); err != nil {
		return nil, err
	}

	res = &Result{Tag: tag, Name: wf.Distribution, Version: wf.Version, Files: len(inst.files)}
	for _, f := range inst.files {
		res.Bytes += f.size
	}
	logger.Info("installed wheel", "name", res.Name, "version", res.Version, "tag", res.Tag, "files", res.Files)
	return res, nil
}

func currentTags(loc location.InstallLocation) (*tags.CompatibleTags, error) {
	platform, err := tags.DetectPlatform()
	if err != nil {
		return nil, err
	}
	major, minor := loc.PythonVersion()
	return tags.NewCompatibleTags(major, minor, platform)
}

// archive is an opened wheel with its metadata located and parsed.
type archive struct {
	files         []*zip.File
	byName        map[string]*zip.File
	distInfo      string // e.g. "tqdm-4.62.3.dist-info"
	dataDir       string // e.g. "tqdm-4.62.3.data"
	rootIsPurelib bool
	record        map[string]RecordEntry
}

func openArchive(zr *zip.Reader, wf *tags.WheelFilename) (*archive, error) {
	a := &archive{byName: make(map[string]*zip.File), record: make(map[string]RecordEntry)}

	distInfos := map[string]bool{}
	for _, f := range zr.File {
		if err := errors.ValidateArchivePath(f.Name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidWheel, err, "The wheel is invalid")
		}
		if f.FileInfo().IsDir() {
			continue
		}
		a.files = append(a.files, f)
		a.byName[f.Name] = f
		if top, _, ok := strings.Cut(f.Name, "/"); ok && strings.HasSuffix(top, ".dist-info") {
			distInfos[top] = true
		}
	}

	want := location.NormalizeName(wf.Distribution)
	var matches []string
	for dir := range distInfos {
		name, _, _ := strings.Cut(strings.TrimSuffix(dir, ".dist-info"), "-")
		if location.NormalizeName(name) == want {
			matches = append(matches, dir)
		}
	}
	if len(matches) != 1 {
		return nil, errors.New(errors.ErrCodeInvalidWheel,
			"The wheel is invalid: expected exactly one .dist-info directory for %s, found %d", wf.Distribution, len(matches))
	}
	a.distInfo = matches[0]
	a.dataDir = strings.TrimSuffix(a.distInfo, ".dist-info") + ".data"

	wheelMeta, err := a.readFile(a.distInfo + "/WHEEL")
	if err != nil {
		return nil, err
	}
	meta := ParseKeyValue(wheelMeta)
	version := meta["Wheel-Version"]
	if major, _, _ := strings.Cut(version, "."); major != "1" {
		return nil, errors.New(errors.ErrCodeInvalidWheel, "The wheel is invalid: unsupported Wheel-Version %q", version)
	}
	a.rootIsPurelib = strings.EqualFold(meta["Root-Is-Purelib"], "true")

	recordData, err := a.readFile(a.distInfo + "/RECORD")
	if err != nil {
		return nil, err
	}
	entries, err := ReadRecord(bytes.NewReader(recordData))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		a.record[e.Path] = e
	}
	return a, nil
}

func (a *archive) has(name string) bool {
	_, ok := a.byName[name]
	return ok
}

func (a *archive) readFile(name string) ([]byte, error) {
	zf, ok := a.byName[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidWheel, "The wheel is invalid: missing %s", name)
	}
	f, err := zf.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "Failed to read %s from the wheel", name)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err, "Failed to read %s from the wheel", name)
	}
	return data, nil
}

// isRecord reports whether name is RECORD or one of its signatures, which
// RECORD cannot list with a hash.
func (a *archive) isRecord(name string) bool {
	switch name {
	case a.distInfo + "/RECORD", a.distInfo + "/RECORD.jws", a.distInfo + "/RECORD.p7s":
		return true
	}
	return false
}

// ParseKeyValue parses "Key: Value" metadata such as WHEEL. Later keys win.
func ParseKeyValue(data []byte) map[string]string {
	out := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

// stagedFile is a file waiting in the staging directory.
type stagedFile struct {
	staged string
	dest   string
	hash   string
	size   int64
	mode   os.FileMode
}

type installer struct {
	ctx      context.Context
	loc      location.InstallLocation
	wheel    *tags.WheelFilename
	archive  *archive
	layout   location.Layout
	root     string
	shebang  string
	stageDir string
	opts     Options
	logger   *log.Logger
	files    []stagedFile
	dests    map[string]int // dest -> index into files
	seq      int
}

// stage writes every file of the install into the staging directory.
func (in *installer) stage() error {
	for _, f := range in.archive.files {
		if err := in.ctx.Err(); err != nil {
			return err
		}
		if f.Name == in.archive.distInfo+"/RECORD" {
			continue
		}
		if err := in.stageMember(f); err != nil {
			return err
		}
	}
	if err := in.stageEntryPoints(); err != nil {
		return err
	}
	return in.stageMetadata()
}

// destination maps an archive member to its install path.
func (in *installer) destination(name string) (dest string, script bool, err error) {
	rest, ok := strings.CutPrefix(name, in.archive.dataDir+"/")
	if !ok {
		return filepath.Join(in.root, filepath.FromSlash(name)), false, nil
	}
	category, rel, ok := strings.Cut(rest, "/")
	if !ok || rel == "" {
		return "", false, errors.New(errors.ErrCodeInvalidWheel, "The wheel is invalid: stray file %s", name)
	}
	rel = filepath.FromSlash(rel)
	switch category {
	case "purelib":
		return filepath.Join(in.layout.Purelib, rel), false, nil
	case "platlib":
		return filepath.Join(in.layout.Platlib, rel), false, nil
	case "scripts":
		return filepath.Join(in.layout.Scripts, rel), true, nil
	case "headers":
		return filepath.Join(in.layout.Headers, rel), false, nil
	case "data":
		return filepath.Join(in.layout.Data, rel), false, nil
	default:
		return "", false, errors.New(errors.ErrCodeInvalidWheel, "The wheel is invalid: unknown data category %q in %s", category, name)
	}
}

func (in *installer) stageMember(f *zip.File) error {
	dest, script, err := in.destination(f.Name)
	if err != nil {
		return err
	}

	if _, dup := in.dests[dest]; dup {
		return errors.New(errors.ErrCodeInvalidWheel, "The wheel is invalid: more than one file installs to %s", dest)
	}

	entry, listed := in.archive.record[f.Name]
	signature := in.archive.isRecord(f.Name)
	if !signature && (!listed || entry.Hash == "") {
		return errors.New(errors.ErrCodeRecordMismatch, "RECORD file doesn't match wheel contents: %s is not listed with a hash", f.Name)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "Failed to read %s from the wheel", f.Name)
	}
	defer rc.Close()

	staged := in.stagePath()
	out, err := os.OpenFile(staged, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to stage %s", f.Name)
	}
	defer out.Close()

	algorithm, want := "sha256", ""
	if !signature {
		if algorithm, want, err = splitRecordHash(entry.Hash); err != nil {
			return err
		}
	}
	h, err := newHash(algorithm)
	if err != nil {
		return err
	}
	hw := newHashingWriter(out, h)
	if _, err := io.Copy(hw, rc); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "Failed to read %s from the wheel", f.Name)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to stage %s", f.Name)
	}

	got := recordDigest(algorithm, hw.h.Sum(nil))
	if !signature && got != algorithm+"="+want {
		return errors.New(errors.ErrCodeRecordMismatch, "RECORD file doesn't match wheel contents: hash mismatch for %s", f.Name)
	}
	if listed && entry.Size != nil && *entry.Size != hw.n {
		return errors.New(errors.ErrCodeRecordMismatch, "RECORD file doesn't match wheel contents: size mismatch for %s (%d != %d)", f.Name, hw.n, *entry.Size)
	}

	sf := stagedFile{staged: staged, dest: dest, hash: got, size: hw.n, mode: 0o644}
	if f.Mode()&0o111 != 0 {
		sf.mode = 0o755
	}
	if script {
		if err := in.fixScript(&sf); err != nil {
			return err
		}
	}
	in.add(sf)
	return nil
}

// stagePath returns a fresh file name in the staging directory.
func (in *installer) stagePath() string {
	in.seq++
	return filepath.Join(in.stageDir, fmt.Sprintf("%06d", in.seq))
}

// add queues sf for commit. A file already staged for the same destination
// is dropped, so each destination is placed and recorded once.
func (in *installer) add(sf stagedFile) {
	if i, ok := in.dests[sf.dest]; ok {
		in.logger.Debug("replacing staged file", "path", sf.dest)
		os.Remove(in.files[i].staged)
		in.files[i] = sf
		return
	}
	in.dests[sf.dest] = len(in.files)
	in.files = append(in.files, sf)
}

// fixScript points a "#!python" script at the target interpreter and makes
// it executable. Its RECORD hash changes accordingly.
func (in *installer) fixScript(sf *stagedFile) error {
	sf.mode = 0o755
	content, err := os.ReadFile(sf.staged)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to read staged script")
	}
	rewritten, changed := rewriteShebang(content, in.shebang)
	if !changed {
		return nil
	}
	if err := os.WriteFile(sf.staged, rewritten, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to rewrite staged script")
	}
	sf.hash, sf.size = digestBytes(rewritten)
	return nil
}

// stageBytes stages generated content for dest. It takes precedence over
// an archive member with the same destination.
func (in *installer) stageBytes(dest string, data []byte, mode os.FileMode) error {
	staged := in.stagePath()
	if err := os.WriteFile(staged, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to stage %s", dest)
	}
	hash, size := digestBytes(data)
	in.add(stagedFile{staged: staged, dest: dest, hash: hash, size: size, mode: mode})
	return nil
}

func (in *installer) stageEntryPoints() error {
	name := in.archive.distInfo + "/entry_points.txt"
	if !in.archive.has(name) {
		return nil
	}
	data, err := in.archive.readFile(name)
	if err != nil {
		return err
	}
	eps, err := ParseEntryPoints(bytes.NewReader(data))
	if err != nil {
		return err
	}
	for _, ep := range eps {
		dest := filepath.Join(in.layout.Scripts, ep.Name)
		if err := in.stageBytes(dest, Launcher(ep, in.shebang), 0o755); err != nil {
			return err
		}
		in.logger.Debug("generated launcher", "name", ep.Name, "gui", ep.GUI)
	}
	return nil
}

func (in *installer) stageMetadata() error {
	distInfo := filepath.Join(in.root, in.archive.distInfo)

	installerName := in.opts.Installer
	if installerName == "" {
		installerName = DefaultInstaller
	}
	if err := in.stageBytes(filepath.Join(distInfo, "INSTALLER"), []byte(installerName+"\n"), 0o644); err != nil {
		return err
	}
	if in.opts.Requested {
		if err := in.stageBytes(filepath.Join(distInfo, "REQUESTED"), nil, 0o644); err != nil {
			return err
		}
	}
	if in.opts.DirectURL != nil {
		data, err := in.opts.DirectURL.MarshalPython()
		if err != nil {
			return err
		}
		if err := in.stageBytes(filepath.Join(distInfo, "direct_url.json"), data, 0o644); err != nil {
			return err
		}
	}

	// RECORD lists everything staged so far plus itself.
	base := location.RecordBase(in.loc, in.wheel.Distribution, in.wheel.Version)
	recordPath := filepath.Join(distInfo, "RECORD")
	entries := make([]RecordEntry, 0, len(in.files)+1)
	for _, f := range in.files {
		rel, err := recordPathOf(base, f.dest)
		if err != nil {
			return err
		}
		size := f.size
		entries = append(entries, RecordEntry{Path: rel, Hash: f.hash, Size: &size})
	}
	rel, err := recordPathOf(base, recordPath)
	if err != nil {
		return err
	}
	entries = append(entries, RecordEntry{Path: rel})

	var buf bytes.Buffer
	if err := WriteRecord(&buf, entries); err != nil {
		return err
	}
	return in.stageBytes(recordPath, buf.Bytes(), 0o644)
}

func recordPathOf(base, dest string) (string, error) {
	rel, err := filepath.Rel(base, dest)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "failed to relativize %s", dest)
	}
	return path.Clean(filepath.ToSlash(rel)), nil
}
