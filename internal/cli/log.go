package cli

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelsmith/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Parsed 42 requirements (12ms)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// logHooks reports library events at debug level.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.ParseHooks   = (*logHooks)(nil)
	_ observability.InstallHooks = (*logHooks)(nil)
	_ observability.CacheHooks   = (*logHooks)(nil)
)

func (h *logHooks) OnParseStart(_ context.Context, file string) {
	h.logger.Debug("parsing requirements", "file", file)
}

func (h *logHooks) OnParseComplete(_ context.Context, file string, requirements, constraints int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("parse failed", "file", file, "duration", d)
		return
	}
	h.logger.Debug("parsed requirements", "file", file, "requirements", requirements, "constraints", constraints, "duration", d)
}

func (h *logHooks) OnLockAcquired(_ context.Context, root string, waited time.Duration) {
	h.logger.Debug("lock acquired", "root", root, "waited", waited.Round(time.Millisecond))
}

func (h *logHooks) OnInstallStart(_ context.Context, wheel, root string) {
	h.logger.Debug("installing", "wheel", filepath.Base(wheel), "root", root)
}

func (h *logHooks) OnInstallComplete(_ context.Context, wheel, tag string, files int, d time.Duration, err error) {
	if err != nil {
		return
	}
	h.logger.Debug("install complete", "wheel", filepath.Base(wheel), "tag", tag, "files", files, "duration", d.Round(time.Millisecond))
}

func (h *logHooks) OnRollback(_ context.Context, wheel string, restored int, err error) {
	if err != nil {
		h.logger.Error("rollback failed", "wheel", filepath.Base(wheel), "restored", restored, "error", err)
		return
	}
	h.logger.Warn("rolled back", "wheel", filepath.Base(wheel), "restored", restored)
}

func (h *logHooks) OnCacheHit(_ context.Context, kind string)  { h.logger.Debug("cache hit", "kind", kind) }
func (h *logHooks) OnCacheMiss(_ context.Context, kind string) { h.logger.Debug("cache miss", "kind", kind) }
func (h *logHooks) OnCacheSet(_ context.Context, kind string, size int) {
	h.logger.Debug("cache set", "kind", kind, "size", size)
}
