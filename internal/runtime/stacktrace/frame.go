// Package stacktrace converts raw call frames into the ordered, annotated
// Stacktrace attached to events.
package stacktrace

import "strings"

// InternalFile names frames without a resolvable source file.
const InternalFile = "[internal]"

// RawFrame is one call location as reported by the runtime, innermost first.
type RawFrame struct {
	Function string
	File     string
	Line     int
	Vars     map[string]any
}

type Frame struct {
	Function    string         `json:"function,omitempty"`
	Module      string         `json:"module,omitempty"`
	Filename    string         `json:"filename"`
	AbsPath     string         `json:"abs_path,omitempty"`
	Lineno      int            `json:"lineno"`
	PreContext  []string       `json:"pre_context,omitempty"`
	ContextLine *string        `json:"context_line,omitempty"`
	PostContext []string       `json:"post_context,omitempty"`
	InApp       bool           `json:"in_app"`
	Vars        map[string]any `json:"vars,omitempty"`
}

// Stacktrace frames are ordered outermost caller first.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// Len is nil-safe.
func (s *Stacktrace) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Frames)
}

// Contextify fills the source excerpt around frame.Lineno (1-based) using up
// to n lines on each side. Out-of-range line numbers leave the frame as is.
func Contextify(frame *Frame, lines []string, n int) {
	idx := frame.Lineno - 1
	if idx < 0 || idx >= len(lines) {
		return
	}
	if n < 0 {
		n = 0
	}
	start := max(0, idx-n)
	end := min(len(lines), idx+1+n)

	line := trimLine(lines[idx])
	frame.ContextLine = &line
	frame.PreContext = trimLines(lines[start:idx])
	frame.PostContext = trimLines(lines[idx+1 : end])
}

func trimLine(s string) string {
	return strings.TrimRight(s, "\r")
}

func trimLines(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, l := range in {
		out[i] = trimLine(l)
	}
	return out
}

// splitFunction separates "example.com/pkg/sub.(*T).Method" into the package
// path and the symbol.
func splitFunction(name string) (module, function string) {
	lastSlash := strings.LastIndex(name, "/")
	if lastSlash < 0 {
		lastSlash = 0
	}
	dot := strings.Index(name[lastSlash:], ".")
	if dot < 0 {
		return "", name
	}
	return name[:lastSlash+dot], name[lastSlash+dot+1:]
}
