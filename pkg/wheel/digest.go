package wheel

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// newHash returns a hasher for a RECORD hash algorithm.
func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidWheel, "unsupported RECORD hash algorithm %q", algorithm)
	}
}

// splitRecordHash splits "sha256=<urlsafe-b64>" into its parts.
func splitRecordHash(value string) (algorithm, digest string, err error) {
	algorithm, digest, ok := strings.Cut(value, "=")
	if !ok || algorithm == "" || digest == "" {
		return "", "", errors.New(errors.ErrCodeInvalidWheel, "invalid RECORD hash %q", value)
	}
	return algorithm, digest, nil
}

// recordDigest encodes a sum the way RECORD stores it.
func recordDigest(algorithm string, sum []byte) string {
	return algorithm + "=" + base64.RawURLEncoding.EncodeToString(sum)
}

// hashingWriter counts and hashes everything written through it.
type hashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func newHashingWriter(w io.Writer, h hash.Hash) *hashingWriter {
	return &hashingWriter{w: w, h: h}
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.h.Write(p[:n])
	hw.n += int64(n)
	return n, err
}

// digestBytes returns the sha256 RECORD hash and size of data.
func digestBytes(data []byte) (string, int64) {
	sum := sha256.Sum256(data)
	return recordDigest("sha256", sum[:]), int64(len(data))
}

// FileSHA256 returns the hex encoded sha256 of the file at path.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "failed to open %s", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "failed to read %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
