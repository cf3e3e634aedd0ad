package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// maxLineSize bounds a single encoded record.
const maxLineSize = 4 << 20

// decodeRecords reads one record per line from r. Blank lines are ignored;
// lines that are not a JSON object with an id are counted in skipped.
func decodeRecords(r io.Reader) (records []types.Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec types.Record
		if json.Unmarshal(line, &rec) != nil || rec.ID == "" {
			skipped++
			continue
		}
		records = append(records, rec.WithSource(types.SourceLocal))
	}
	return records, skipped, sc.Err()
}

// encodeRecords writes records to w, one JSON object per line.
func encodeRecords(w io.Writer, records []types.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// replaceFile writes path through a temp file in the same directory that
// is synced and renamed over path, so readers see either the old content
// or the new one.
func replaceFile(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
