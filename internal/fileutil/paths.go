package fileutil

import (
	"path/filepath"
	"strings"
)

// ComparePaths orders paths one component at a time, which is the order a
// lexical directory walk visits them: "a/x.ts" sorts before "a-b.ts".
func ComparePaths(a, b string) int {
	as := strings.Split(filepath.ToSlash(a), "/")
	bs := strings.Split(filepath.ToSlash(b), "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}
