package httpapi

import (
	"html"
	"regexp"
	"strings"
	"sync"
)

// RingLog is a fixed-capacity tail buffer the logging package writes into
// alongside its normal console/file sinks, backing GET /api/logs' paginated
// tail view.
type RingLog struct {
	mu       sync.Mutex
	lines    []string
	capacity int
}

func NewRingLog(capacity int) *RingLog {
	return &RingLog{capacity: capacity}
}

// Write implements io.Writer so it can be added to the logger's
// io.MultiWriter fan-out; each call is split on newlines and appended.
func (r *RingLog) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(string(p), "\n") {
		if line == "" {
			continue
		}
		r.lines = append(r.lines, line)
	}
	if overflow := len(r.lines) - r.capacity; overflow > 0 {
		r.lines = r.lines[overflow:]
	}
	return len(p), nil
}

// Page returns the lines for a zero-indexed page counting back from the
// most recent line, newest page first.
func (r *RingLog) Page(page, pageSize int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pageSize <= 0 {
		pageSize = 200
	}
	end := len(r.lines) - page*pageSize
	if end <= 0 {
		return nil
	}
	start := end - pageSize
	if start < 0 {
		start = 0
	}
	out := make([]string, end-start)
	copy(out, r.lines[start:end])
	return out
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// renderANSILinesAsHTML strips any ANSI SGR codes and HTML-escapes the
// remainder into a <pre> block, rendered as plain monospace text rather
// than reproducing each SGR code as a span. The ring buffer receives the
// logger's raw zerolog JSON lines, not the console sink's colored output.
func renderANSILinesAsHTML(lines []string) string {
	var b strings.Builder
	b.WriteString("<pre>")
	for _, line := range lines {
		clean := ansiEscape.ReplaceAllString(line, "")
		b.WriteString(html.EscapeString(clean))
		b.WriteString("\n")
	}
	b.WriteString("</pre>")
	return b.String()
}
