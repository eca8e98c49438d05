package mutate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	paths []string
	err   error
}

func (r *recorder) MarkStale(path string) error {
	r.paths = append(r.paths, path)
	return r.err
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.ts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func numbered(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "line" + string(rune('A'+i))
	}
	return strings.Join(lines, "\n")
}

func TestDeleteRangeArithmetic(t *testing.T) {
	cases := []struct{ start, end int }{{1, 1}, {2, 4}, {1, 6}, {6, 6}}
	for _, tc := range cases {
		path := writeTemp(t, numbered(6))
		before := strings.Split(readFile(t, path), "\n")

		res, err := New(nil).DeleteRange(path, tc.start, tc.end)
		require.NoError(t, err)

		after := strings.Split(readFile(t, path), "\n")
		removed := tc.end - tc.start + 1
		if removed == len(before) {
			assert.Equal(t, []string{""}, after, "an emptied file still has one empty line")
			continue
		}
		assert.Len(t, after, len(before)-removed)
		assert.Equal(t, len(after), res.LinesAfter)
		assert.Equal(t, before[:tc.start-1], after[:tc.start-1])
		assert.Equal(t, before[tc.end:], after[tc.start-1:])
	}
}

func TestInsertAtArithmetic(t *testing.T) {
	path := writeTemp(t, numbered(3))

	res, err := New(nil).InsertAt(path, 2, "x\ny")
	require.NoError(t, err)
	assert.Equal(t, 3, res.LinesBefore)
	assert.Equal(t, 5, res.LinesAfter)
	assert.Equal(t, 2, res.LinesChanged)
	assert.Equal(t, "lineA\nx\ny\nlineB\nlineC", readFile(t, path))

	_, err = New(nil).InsertAt(path, 6, "end")
	require.NoError(t, err)
	assert.Equal(t, "lineA\nx\ny\nlineB\nlineC\nend", readFile(t, path))
}

func TestDeleteThenInsertRestoresFile(t *testing.T) {
	original := numbered(5)
	path := writeTemp(t, original)
	svc := New(nil)

	_, err := svc.DeleteRange(path, 2, 3)
	require.NoError(t, err)
	_, err = svc.InsertAt(path, 2, "lineB\nlineC")
	require.NoError(t, err)
	assert.Equal(t, original, readFile(t, path))
}

func TestInvalidRanges(t *testing.T) {
	path := writeTemp(t, numbered(3))
	svc := New(nil)

	deletes := [][2]int{{0, 1}, {2, 1}, {1, 4}, {-1, 2}}
	for _, r := range deletes {
		_, err := svc.DeleteRange(path, r[0], r[1])
		assert.ErrorIs(t, err, ErrInvalidRange, "delete %v", r)
	}
	for _, start := range []int{0, 5} {
		_, err := svc.InsertAt(path, start, "x")
		assert.ErrorIs(t, err, ErrInvalidRange, "insert at %d", start)
	}
	assert.Equal(t, numbered(3), readFile(t, path), "failed edits leave the file untouched")
}

func TestErrorsCarryPathAndRange(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.py")
	_, err := New(nil).DeleteRange(missing, 2, 5)
	require.Error(t, err)

	var mErr *Error
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, OpDelete, mErr.Op)
	assert.Equal(t, missing, mErr.Path)
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "lines 2-5")
	assert.Contains(t, err.Error(), missing)

	_, err = New(nil).InsertAt(t.TempDir(), 1, "x")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestModePreservedAndStaleMarked(t *testing.T) {
	path := writeTemp(t, numbered(3))
	rec := &recorder{}

	_, err := New(rec).DeleteRange(path, 1, 1)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.Equal(t, []string{path}, rec.paths)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStaleMarkerFailureLeavesFileUnchanged(t *testing.T) {
	path := writeTemp(t, "a\nb\nc\nd")
	svc := New(&recorder{err: errors.New("disk full")})

	for i := 0; i < 2; i++ {
		_, err := svc.DeleteRange(path, 2, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, "a\nb\nc\nd", readFile(t, path), "a reported failure must not apply the edit")
	}

	_, err := svc.InsertAt(path, 1, "x")
	require.Error(t, err)
	assert.Equal(t, "a\nb\nc\nd", readFile(t, path))
}

func TestDiffPreview(t *testing.T) {
	path := writeTemp(t, "a\nb\nc\nd")

	res, err := New(nil).DeleteRange(path, 2, 2)
	require.NoError(t, err)
	assert.Contains(t, res.Diff, "@@ -1,4 +1,3 @@")
	assert.Contains(t, res.Diff, " a\n-b\n c\n d\n")

	path = writeTemp(t, "a\nb")
	res, err = New(nil).InsertAt(path, 3, "x\ny")
	require.NoError(t, err)
	assert.Contains(t, res.Diff, "@@ -1,2 +1,4 @@")
	assert.Contains(t, res.Diff, " a\n b\n+x\n+y\n")
}
