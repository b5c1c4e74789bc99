package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baicai99/ilovelie/internal/position"
)

func TestBufferApplyBatchUsesPreEditCoordinates(t *testing.T) {
	buf := NewBuffer("a.go", "x = 1 // one\ny = 2 // two\n")

	err := buf.ApplyBatch(context.Background(), []Edit{
		{Range: position.NewRange(0, 9, 0, 12), NewText: "uno"},
		{Range: position.NewRange(0, 0, 0, 1), NewText: "xx"},
		{Range: position.NewRange(1, 9, 1, 12), NewText: "dos"},
	})
	require.NoError(t, err)
	assert.Equal(t, "xx = 1 // uno\ny = 2 // dos\n", buf.Text())
}

func TestBufferApplyBatchIsAtomic(t *testing.T) {
	const text = "abc\ndef\n"
	tests := []struct {
		name  string
		edits []Edit
	}{
		{"out of bounds", []Edit{
			{Range: position.NewRange(0, 0, 0, 1), NewText: "A"},
			{Range: position.NewRange(5, 0, 5, 1), NewText: "Z"},
		}},
		{"overlap", []Edit{
			{Range: position.NewRange(0, 0, 0, 2), NewText: "A"},
			{Range: position.NewRange(0, 1, 0, 3), NewText: "B"},
		}},
		{"inverted", []Edit{
			{Range: position.NewRange(1, 2, 1, 0), NewText: "B"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewBuffer("a.txt", text)
			require.Error(t, buf.ApplyBatch(context.Background(), tt.edits))
			assert.Equal(t, text, buf.Text())
		})
	}
}

func TestBufferApplyBatchOverlapSentinel(t *testing.T) {
	buf := NewBuffer("a.txt", "abcdef")
	err := buf.ApplyBatch(context.Background(), []Edit{
		{Range: position.NewRange(0, 0, 0, 2), NewText: ""},
		{Range: position.NewRange(0, 0, 0, 2), NewText: ""},
	})
	assert.ErrorIs(t, err, ErrOverlappingEdits)
}

func TestBufferApplyBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	buf := NewBuffer("a.txt", "abc")
	err := buf.ApplyBatch(ctx, []Edit{{Range: position.NewRange(0, 0, 0, 1), NewText: "z"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "abc", buf.Text())
}

func TestBufferQueries(t *testing.T) {
	buf := NewBuffer("a.txt", "abc\ndef")
	assert.Equal(t, 2, buf.LineCount())
	assert.Equal(t, position.Position{Line: 1, Character: 3}, buf.End())
	assert.Equal(t, "c\nd", buf.TextInRange(position.NewRange(0, 2, 1, 1)))

	line, err := buf.LineAt(1)
	require.NoError(t, err)
	assert.Equal(t, "def", line)

	_, err = buf.LineAt(2)
	assert.Error(t, err)

	assert.Equal(t, position.NewRange(0, 0, 1, 3), FullRange(buf))
}

func TestFileApplyBatchWritesThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("a = 1  # old\n"), 0o640))

	f, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, f.ApplyBatch(context.Background(), []Edit{
		{Range: position.NewRange(0, 9, 0, 12), NewText: "new"},
	}))
	assert.Equal(t, "a = 1  # new\n", f.Text())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a = 1  # new\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestFileFailedBatchLeavesDiskUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.py")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	f, err := OpenFile(path)
	require.NoError(t, err)

	err = f.ApplyBatch(context.Background(), []Edit{{Range: position.NewRange(3, 0, 3, 1), NewText: "x"}})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestFileReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	require.NoError(t, f.Reload())
	assert.Equal(t, "two", f.Text())
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.go"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
