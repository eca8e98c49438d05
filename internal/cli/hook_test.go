package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHookBlockChecksMetadataDir(t *testing.T) {
	block := BuildHookBlock("/repo/path", ".codr/metadata")

	for _, expected := range []string{
		`repo_root="/repo/path"`,
		`metadata_dir="$repo_root/.codr/metadata"`,
		`[ -f "$metadata_dir/CURRENT" ]`,
		"codr build --log-level warn) || exit 1",
	} {
		assert.Contains(t, block, expected)
	}
	assert.True(t, strings.HasPrefix(block, HookStart))
	assert.True(t, strings.HasSuffix(block, HookEnd))
}

func TestUpsertHookReplacesExistingBlock(t *testing.T) {
	existing := "#!/bin/sh\n\necho before\n" + HookStart + "\nold block\n" + HookEnd + "\n\necho after\n"
	updated := UpsertHook(existing, "/repo/path", ".codr/metadata")

	assert.NotContains(t, updated, "old block")
	assert.Equal(t, 1, strings.Count(updated, HookStart))
	assert.Equal(t, 1, strings.Count(updated, HookEnd))
	assert.Contains(t, updated, "echo before")
	assert.Contains(t, updated, "echo after")
}

func TestUpsertHookAddsShebang(t *testing.T) {
	assert.True(t, strings.HasPrefix(UpsertHook("", "/r", ".codr/metadata"), "#!/bin/sh\n\n"+HookStart))

	updated := UpsertHook("echo lint", "/r", ".codr/metadata")
	assert.True(t, strings.HasPrefix(updated, "#!/bin/sh\necho lint\n\n"+HookStart))
	assert.True(t, strings.HasSuffix(updated, HookEnd+"\n"))
}
