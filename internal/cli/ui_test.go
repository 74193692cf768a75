package cli

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matzehuels/wheelsmith/pkg/tags"
	"github.com/matzehuels/wheelsmith/pkg/wheel"
)

func captureStatus(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := statusOut
	statusOut = &buf
	t.Cleanup(func() { statusOut = prev })
	return &buf
}

func TestPrintInstalled(t *testing.T) {
	buf := captureStatus(t)
	printInstalled(&wheel.Result{
		Tag:     tags.Tag{Python: "py3", ABI: "none", Platform: "any"},
		Name:    "tqdm",
		Version: "4.62.3",
		Files:   12,
		Bytes:   2048,
	})

	out := buf.String()
	assert.Contains(t, out, "tqdm")
	assert.Contains(t, out, "4.62.3")
	assert.Contains(t, out, "py3-none-any")
	assert.Contains(t, out, "12 files")
	assert.Contains(t, out, "2.0 kB")
}

func TestPrintStatusLines(t *testing.T) {
	buf := captureStatus(t)
	printSkippedWheel("pkg.tar.gz", stderrors.New("not a wheel"))
	printCacheCleared(1500, "/tmp/cache")

	out := buf.String()
	assert.Contains(t, out, "Skipping pkg.tar.gz: not a wheel")
	assert.Contains(t, out, "1.5 kB")
	assert.Contains(t, out, "/tmp/cache")
}
