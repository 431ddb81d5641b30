package stacktrace

import (
	"runtime"
	"strings"

	"github.com/drblury/faultline/internal/runtime/serializer"
)

const (
	DefaultContextLines = 5
	autogeneratedFile   = "<autogenerated>"
	methodValueSuffix   = "-fm"
	defaultCaptureDepth = 64
)

// Builder turns raw frames into a Stacktrace. The zero value reads files
// directly and uses five lines of context.
type Builder struct {
	ContextLines     int
	Reader           SourceReader
	Serializer       *serializer.Serializer
	InAppInclude     []string
	InAppExclude     []string
	PrefixesForPaths []string
}

// Build prepends the capture origin to raw (innermost first) and returns the
// frames outermost first.
func (b *Builder) Build(raw []RawFrame, originFile string, originLine int) *Stacktrace {
	return b.BuildWithOrigin(raw, RawFrame{File: originFile, Line: originLine})
}

func (b *Builder) BuildWithOrigin(raw []RawFrame, origin RawFrame) *Stacktrace {
	all := make([]RawFrame, 0, len(raw)+1)
	all = append(all, origin)
	all = append(all, raw...)
	return b.build(all)
}

// BuildFrames converts frames that already start at the capture site.
func (b *Builder) BuildFrames(raw []RawFrame) *Stacktrace {
	if len(raw) == 0 {
		return nil
	}
	return b.build(raw)
}

func (b *Builder) build(raw []RawFrame) *Stacktrace {
	frames := make([]Frame, len(raw))
	for i, r := range raw {
		frames[len(raw)-1-i] = b.frame(r)
	}
	return &Stacktrace{Frames: frames}
}

func (b *Builder) frame(r RawFrame) Frame {
	file, line := r.File, r.Line
	if file == "" || file == autogeneratedFile {
		file, line = InternalFile, 0
	}

	module, function := splitFunction(strings.TrimSuffix(r.Function, methodValueSuffix))
	f := Frame{
		Function: function,
		Module:   module,
		Filename: b.stripPrefix(file),
		Lineno:   line,
	}
	if file != InternalFile {
		f.AbsPath = file
		b.contextify(&f)
	}
	f.InApp = b.inApp(f)
	if len(r.Vars) > 0 {
		f.Vars = b.vars(r.Vars)
	}
	return f
}

// contextify fails soft: read errors leave the context empty.
func (b *Builder) contextify(f *Frame) {
	n := b.ContextLines
	if n <= 0 {
		n = DefaultContextLines
	}
	reader := b.Reader
	if reader == nil {
		reader = FileSourceReader{}
	}
	lines, err := reader.ReadLines(f.AbsPath)
	if err != nil {
		return
	}
	Contextify(f, lines, n)
}

func (b *Builder) vars(in map[string]any) map[string]any {
	s := b.Serializer
	if s == nil {
		s = serializer.NewRepresentation(serializer.Options{})
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = s.Serialize(v)
	}
	return out
}

func (b *Builder) stripPrefix(file string) string {
	for _, prefix := range b.PrefixesForPaths {
		if prefix != "" && strings.HasPrefix(file, prefix) {
			return strings.TrimLeft(strings.TrimPrefix(file, prefix), "/")
		}
	}
	return file
}

func (b *Builder) inApp(f Frame) bool {
	for _, p := range b.InAppExclude {
		if hasPathPrefix(f.Module, p) {
			return false
		}
	}
	for _, p := range b.InAppInclude {
		if hasPathPrefix(f.Module, p) {
			return true
		}
	}
	if f.Filename == InternalFile || f.Module == "" {
		return false
	}
	if strings.Contains(f.AbsPath, "/pkg/mod/") || strings.Contains(f.AbsPath, "/vendor/") {
		return false
	}
	// Standard library packages have no dot in their first path element.
	first, _, _ := strings.Cut(f.Module, "/")
	return strings.Contains(first, ".") || f.Module == "main"
}

func hasPathPrefix(module, prefix string) bool {
	return prefix != "" && (module == prefix || strings.HasPrefix(module, strings.TrimSuffix(prefix, "/")+"/"))
}

// Capture records the current goroutine's call stack, innermost first,
// skipping skip frames above the caller of Capture.
func Capture(skip int) []RawFrame {
	pcs := make([]uintptr, defaultCaptureDepth)
	n := runtime.Callers(skip+2, pcs)
	return FromCallers(pcs[:n])
}

// FromCallers resolves program counters as returned by runtime.Callers.
func FromCallers(pcs []uintptr) []RawFrame {
	if len(pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs)
	out := make([]RawFrame, 0, len(pcs))
	for {
		fr, more := frames.Next()
		if fr.Function != "" || fr.File != "" {
			out = append(out, RawFrame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			break
		}
	}
	return out
}
