package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_DefaultAndUserOverrides(t *testing.T) {
	m := NewMatcher([]string{
		"generated/**",
		"!generated/keep/file.ts",
		"*.tmp",
	})

	cases := []struct {
		path    string
		isDir   bool
		ignored bool
	}{
		{path: ".git/config", ignored: true},
		{path: ".codr/metadata/CURRENT", ignored: true},
		{path: "node_modules/pkg/index.js", ignored: true},
		{path: "web/node_modules/pkg/index.js", ignored: true},
		{path: "app/__pycache__", isDir: true, ignored: true},
		{path: "generated/lib/a.ts", ignored: true},
		{path: "generated/keep/file.ts", ignored: false},
		{path: "nested/cache.tmp", ignored: true},
		{path: "src/main.ts", ignored: false},
		{path: "src/build", ignored: false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ignored, m.ShouldIgnore(tc.path, tc.isDir), tc.path)
	}
}

func TestMatcher_NegatedDirectoryRule(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
	})

	assert.True(t, m.ShouldIgnore("build/out/file.ts", false))
	assert.False(t, m.ShouldIgnore("build/include/file.ts", false))
}

func TestMatcher_AnchoredRule(t *testing.T) {
	m := NewMatcher([]string{"/scripts/*.py"})

	assert.True(t, m.ShouldIgnore("scripts/run.py", false))
	assert.False(t, m.ShouldIgnore("app/scripts/run.py", false))
}

func TestLoadReadsIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "# comment\nfixtures/\n")
	writeFile(t, filepath.Join(root, ".gitignore"), "*.log\n")

	m, err := Load(root, []string{"*.snap"}, true)
	require.NoError(t, err)

	assert.True(t, m.ShouldIgnore("fixtures/a.ts", false))
	assert.True(t, m.ShouldIgnore("app/debug.log", false))
	assert.True(t, m.ShouldIgnore("ui/view.snap", false))
	assert.False(t, m.ShouldIgnore("app/main.py", false))

	without, err := Load(root, nil, false)
	require.NoError(t, err)
	assert.False(t, without.ShouldIgnore("app/debug.log", false))
}

func TestReadRulesMissingFile(t *testing.T) {
	rules, err := ReadRules(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
