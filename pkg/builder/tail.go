// pkg/builder/tail.go
package builder

import (
	"strings"
	"sync"
)

// tailWriter keeps the last n lines written through it. Build output can
// run to megabytes; reports only carry the tail while the log file keeps
// everything.
type tailWriter struct {
	mu      sync.Mutex
	n       int
	lines   []string
	partial strings.Builder
}

func newTailWriter(n int) *tailWriter {
	return &tailWriter{n: n}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			w.push(w.partial.String())
			w.partial.Reset()
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

func (w *tailWriter) push(line string) {
	w.lines = append(w.lines, line)
	if len(w.lines) > w.n {
		w.lines = w.lines[len(w.lines)-w.n:]
	}
}

// Lines returns the captured tail, including any unterminated final line.
func (w *tailWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]string(nil), w.lines...)
	if w.partial.Len() > 0 {
		out = append(out, w.partial.String())
		if len(out) > w.n {
			out = out[len(out)-w.n:]
		}
	}
	return out
}
