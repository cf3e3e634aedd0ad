package jsonl

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantIDs     []string
		wantSkipped int
	}{
		{name: "empty", input: "", wantIDs: nil},
		{name: "blank lines ignored", input: "\n{\"id\":\"a\"}\n\n  \n{\"id\":\"b\"}\n", wantIDs: []string{"a", "b"}},
		{name: "garbage skipped", input: "not json\n{\"id\":\"a\"}\n{\"id\":\n", wantIDs: []string{"a"}, wantSkipped: 2},
		{name: "missing id skipped", input: "{\"name\":\"x\"}\n{\"id\":\"a\"}\n", wantIDs: []string{"a"}, wantSkipped: 1},
		{name: "bad timestamp skipped", input: "{\"id\":\"a\",\"created_at\":\"yesterday\"}\n", wantSkipped: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, skipped, err := decodeRecords(strings.NewReader(tt.input))
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.ID)
				assert.Equal(t, types.SourceLocal, r.Source)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantSkipped, skipped)
		})
	}
}

func TestEncodeRecordsOnePerLine(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := encodeRecords(&buf, []types.Record{
		{ID: "a", CreatedAt: ts, UpdatedAt: ts, Fields: map[string]any{"note": "<b>"}},
		{ID: "b", Fields: map[string]any{}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":"a","created_at":"2026-03-01T09:00:00.000000000Z","updated_at":"2026-03-01T09:00:00.000000000Z","note":"<b>"}`, lines[0])
	assert.JSONEq(t, `{"id":"b"}`, lines[1])
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	require.NoError(t, replaceFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "new\n")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))

	boom := errors.New("boom")
	err = replaceFile(path, func(w io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data), "failed write must leave the old content")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}
