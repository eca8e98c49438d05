package mutate

import (
	"bytes"

	"github.com/sourcegraph/go-diff/diff"
)

const contextLines = 3

// deletionDiff renders the unified diff of removing lines start..end.
func deletionDiff(path string, lines []string, start, end int) (string, error) {
	from := max(1, start-contextLines)
	to := min(len(lines), end+contextLines)

	var body bytes.Buffer
	writeLines(&body, ' ', lines[from-1:start-1])
	writeLines(&body, '-', lines[start-1:end])
	writeLines(&body, ' ', lines[end:to])

	origLines := to - from + 1
	newLines := origLines - (end - start + 1)
	return render(path, &diff.Hunk{
		OrigStartLine: int32(from),
		OrigLines:     int32(origLines),
		NewStartLine:  hunkStart(from, newLines),
		NewLines:      int32(newLines),
		Body:          body.Bytes(),
	})
}

// insertionDiff renders the unified diff of inserting added before line start.
func insertionDiff(path string, lines []string, start int, added []string) (string, error) {
	from := max(1, start-contextLines)
	to := min(len(lines), start-1+contextLines)

	var body bytes.Buffer
	writeLines(&body, ' ', lines[from-1:start-1])
	writeLines(&body, '+', added)
	if start <= len(lines) {
		writeLines(&body, ' ', lines[start-1:to])
	}

	origLines := to - from + 1
	return render(path, &diff.Hunk{
		OrigStartLine: hunkStart(from, origLines),
		OrigLines:     int32(origLines),
		NewStartLine:  int32(from),
		NewLines:      int32(origLines + len(added)),
		Body:          body.Bytes(),
	})
}

// hunkStart follows the unified diff convention of line 0 for an empty side.
func hunkStart(from, count int) int32 {
	if count == 0 {
		return int32(from - 1)
	}
	return int32(from)
}

func writeLines(buf *bytes.Buffer, prefix byte, lines []string) {
	for _, line := range lines {
		buf.WriteByte(prefix)
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

func render(path string, hunk *diff.Hunk) (string, error) {
	out, err := diff.PrintFileDiff(&diff.FileDiff{
		OrigName: path,
		NewName:  path,
		Hunks:    []*diff.Hunk{hunk},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
