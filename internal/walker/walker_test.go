package walker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skelly-dev/codr/internal/ignore"
)

func sourceOnly(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".ts" || ext == ".py"
}

func TestWalkYieldsAcceptedFilesInLexicalOrder(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "b.ts"), "")
	mustWriteFile(t, filepath.Join(root, "a", "z.py"), "")
	mustWriteFile(t, filepath.Join(root, "node_modules", "dep", "x.ts"), "")
	mustWriteFile(t, filepath.Join(root, "README.md"), "")
	mustWriteFile(t, filepath.Join(root, "generated", "g.ts"), "")

	files, errs := Files(root, Options{
		Ignore: ignore.NewMatcher([]string{"generated/"}),
		Accept: sourceOnly,
	})
	require.Empty(t, errs)

	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(abs, "a", "z.py"),
		filepath.Join(abs, "b.ts"),
	}, files)
}

func TestWalkIsDeterministic(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.ts", "a.ts", "b/d.py", "b/a.py"} {
		mustWriteFile(t, filepath.Join(root, name), "")
	}

	first, _ := Files(root, Options{Accept: sourceOnly})
	second, _ := Files(root, Options{Accept: sourceOnly})
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestWalkDetectsSymlinkCycles(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "src", "main.ts"), "")
	if err := os.Symlink(root, filepath.Join(root, "src", "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, errs := Files(root, Options{Accept: sourceOnly, FollowSymlinks: true})
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], filepath.Join("src", "main.ts")))
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrSymlinkCycle))

	files, errs = Files(root, Options{Accept: sourceOnly})
	assert.Len(t, files, 1)
	assert.Empty(t, errs, "symlinks are skipped when not followed")
}

func TestWalkStopsWhenConsumerBreaks(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.ts", "b.ts", "c.ts"} {
		mustWriteFile(t, filepath.Join(root, name), "")
	}

	seen := 0
	for _, err := range Walk(root, Options{Accept: sourceOnly}) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestWalkMissingRoot(t *testing.T) {
	_, errs := Files(filepath.Join(t.TempDir(), "missing"), Options{})
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], os.ErrNotExist))
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
