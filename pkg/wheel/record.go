package wheel

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/matzehuels/wheelsmith/pkg/errors"
)

// RecordEntry is one row of a RECORD file. Hash is in "algorithm=digest"
// form and empty for RECORD itself, as is Size.
type RecordEntry struct {
	Path string
	Hash string
	Size *int64
}

// ReadRecord parses a RECORD file.
func ReadRecord(r io.Reader) ([]RecordEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidWheel, err, "RECORD file is invalid")
	}

	entries := make([]RecordEntry, 0, len(rows))
	for _, row := range rows {
		entry := RecordEntry{Path: row[0], Hash: row[1]}
		if row[2] != "" {
			size, err := strconv.ParseInt(row[2], 10, 64)
			if err != nil || size < 0 {
				return nil, errors.New(errors.ErrCodeInvalidWheel, "RECORD file is invalid: bad size %q for %s", row[2], row[0])
			}
			entry.Size = &size
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WriteRecord writes entries sorted by path.
func WriteRecord(w io.Writer, entries []RecordEntry) error {
	sorted := append([]RecordEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	cw := csv.NewWriter(w)
	for _, e := range sorted {
		size := ""
		if e.Size != nil {
			size = strconv.FormatInt(*e.Size, 10)
		}
		if err := cw.Write([]string{e.Path, e.Hash, size}); err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "failed to write RECORD")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "failed to write RECORD")
	}
	return nil
}
