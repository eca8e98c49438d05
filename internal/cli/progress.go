package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// progressReporter draws a single-line spinner on a terminal. Update is called
// from extraction workers, so it locks.
type progressReporter struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	label   string
	start   time.Time
	spinner int
	lastLen int
	count   int
}

func newProgressReporter(label string, w io.Writer, asJSON bool) *progressReporter {
	return &progressReporter{
		w:       w,
		enabled: !asJSON && isTerminal(w),
		label:   label,
		start:   time.Now(),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *progressReporter) Update(done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = done
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	r.printStatus(fmt.Sprintf("%s %s %d/%d files", frame, r.label, done, total))
}

func (r *progressReporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete (%d files in %s)", r.label, r.count, elapsed))
	fmt.Fprintln(r.w)
}

func (r *progressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.w, "\r%s", status)
}
