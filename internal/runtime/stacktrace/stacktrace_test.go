package stacktrace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/drblury/faultline/internal/runtime/serializer"
)

type mapReader map[string][]string

func (m mapReader) ReadLines(path string) ([]string, error) {
	lines, ok := m[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return lines, nil
}

func numberedLines(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "line " + string(rune('a'+i))
	}
	return out
}

func TestBuildReversesAndIncludesOrigin(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: mapReader{}}
	raw := []RawFrame{
		{Function: "example.com/app.inner", File: "/src/inner.go", Line: 10},
		{Function: "example.com/app.middle", File: "/src/middle.go", Line: 20},
		{Function: "example.com/app.outer", File: "/src/outer.go", Line: 30},
	}

	st := b.Build(raw, "/src/origin.go", 5)
	if st.Len() != 4 {
		t.Fatalf("expected 4 frames, got %d", st.Len())
	}
	wantFiles := []string{"/src/outer.go", "/src/middle.go", "/src/inner.go", "/src/origin.go"}
	for i, want := range wantFiles {
		if st.Frames[i].Filename != want {
			t.Fatalf("frame %d: expected %s, got %s", i, want, st.Frames[i].Filename)
		}
	}
	if st.Frames[0].Function != "outer" || st.Frames[0].Module != "example.com/app" {
		t.Fatalf("unexpected function split %+v", st.Frames[0])
	}
	if st.Frames[3].Lineno != 5 {
		t.Fatalf("expected origin line 5, got %d", st.Frames[3].Lineno)
	}
}

func TestBuildEmptyBacktraceYieldsOrigin(t *testing.T) {
	t.Parallel()

	st := (&Builder{Reader: mapReader{}}).Build(nil, "/src/origin.go", 9)
	if st.Len() != 1 || st.Frames[0].Filename != "/src/origin.go" || st.Frames[0].Lineno != 9 {
		t.Fatalf("unexpected stacktrace %+v", st)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: mapReader{}}
	raw := []RawFrame{{File: "/a.go", Line: 1}, {File: "/b.go", Line: 2}}
	first := b.Build(raw, "/o.go", 3)
	second := b.Build(raw, "/o.go", 3)
	for i := range first.Frames {
		if first.Frames[i].Filename != second.Frames[i].Filename || first.Frames[i].Lineno != second.Frames[i].Lineno {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
}

func TestUnresolvableFramesBecomeInternal(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: mapReader{}}
	st := b.BuildFrames([]RawFrame{
		{Function: "example.com/app.(*T).Run-fm", File: "<autogenerated>", Line: 1},
		{Function: "example.com/app.func1", File: "", Line: 7},
	})
	for _, f := range st.Frames {
		if f.Filename != InternalFile || f.Lineno != 0 {
			t.Fatalf("expected internal frame, got %+v", f)
		}
		if f.InApp {
			t.Fatalf("internal frames are not in-app: %+v", f)
		}
	}
	if st.Frames[1].Function != "(*T).Run" {
		t.Fatalf("expected method value suffix trimmed, got %q", st.Frames[1].Function)
	}
}

func TestContextExtraction(t *testing.T) {
	t.Parallel()

	lines := numberedLines(20)
	b := &Builder{ContextLines: 2, Reader: mapReader{"/src/file.go": lines}}
	st := b.BuildFrames([]RawFrame{{File: "/src/file.go", Line: 10}})
	f := st.Frames[0]
	if f.ContextLine == nil || *f.ContextLine != lines[9] {
		t.Fatalf("unexpected context line %v", f.ContextLine)
	}
	if len(f.PreContext) != 2 || f.PreContext[0] != lines[7] || f.PreContext[1] != lines[8] {
		t.Fatalf("unexpected pre context %v", f.PreContext)
	}
	if len(f.PostContext) != 2 || f.PostContext[0] != lines[10] {
		t.Fatalf("unexpected post context %v", f.PostContext)
	}
}

func TestContextifyEdges(t *testing.T) {
	t.Parallel()

	lines := []string{"first\r", "second", "third"}

	f := Frame{Lineno: 1}
	Contextify(&f, lines, 5)
	if *f.ContextLine != "first" || len(f.PreContext) != 0 || len(f.PostContext) != 2 {
		t.Fatalf("unexpected context at start: %+v", f)
	}

	out := Frame{Lineno: 99}
	Contextify(&out, lines, 5)
	if out.ContextLine != nil {
		t.Fatal("expected out-of-range line to be ignored")
	}
}

func TestUnreadableSourceFailsSoft(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: SourceReaderFunc(func(string) ([]string, error) {
		return nil, errors.New("permission denied")
	})}
	st := b.BuildFrames([]RawFrame{{File: "/secret.go", Line: 3}})
	if st.Frames[0].ContextLine != nil || st.Frames[0].Lineno != 3 {
		t.Fatalf("expected frame without context, got %+v", st.Frames[0])
	}
}

func TestVarsUseRepresentationSerializer(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: mapReader{}, Serializer: serializer.NewRepresentation(serializer.Options{})}
	st := b.BuildFrames([]RawFrame{{File: "/x.go", Line: 1, Vars: map[string]any{"n": nil, "f": 3.0, "ok": true}}})
	vars := st.Frames[0].Vars
	if vars["n"] != "null" || vars["f"] != "3.0" || vars["ok"] != "true" {
		t.Fatalf("unexpected vars %#v", vars)
	}
}

func TestInAppRules(t *testing.T) {
	t.Parallel()

	b := &Builder{
		Reader:       mapReader{},
		InAppInclude: []string{"github.com/vendor/kept"},
		InAppExclude: []string{"example.com/app/generated"},
	}
	st := b.BuildFrames([]RawFrame{
		{Function: "net/http.(*Server).Serve", File: "/go/src/net/http/server.go", Line: 1},
		{Function: "example.com/app/generated.Do", File: "/src/generated.go", Line: 1},
		{Function: "github.com/vendor/kept.Do", File: "/home/u/go/pkg/mod/github.com/vendor/kept/x.go", Line: 1},
		{Function: "github.com/other/lib.Do", File: "/home/u/go/pkg/mod/github.com/other/lib/x.go", Line: 1},
		{Function: "example.com/app.Handle", File: "/src/app.go", Line: 1},
		{Function: "main.main", File: "/src/main.go", Line: 1},
	})
	want := []bool{true, true, false, true, false, false}
	for i, f := range st.Frames {
		if f.InApp != want[i] {
			t.Fatalf("frame %d (%s): expected in_app=%v", i, f.Module, want[i])
		}
	}
}

func TestPrefixesForPaths(t *testing.T) {
	t.Parallel()

	b := &Builder{Reader: mapReader{}, PrefixesForPaths: []string{"/srv/app"}}
	st := b.BuildFrames([]RawFrame{{File: "/srv/app/pkg/file.go", Line: 1}})
	if st.Frames[0].Filename != "pkg/file.go" || st.Frames[0].AbsPath != "/srv/app/pkg/file.go" {
		t.Fatalf("unexpected paths %+v", st.Frames[0])
	}
}

func TestCaptureStartsAtCaller(t *testing.T) {
	t.Parallel()

	frames := Capture(0)
	if len(frames) == 0 {
		t.Fatal("expected frames")
	}
	if !strings.HasSuffix(frames[0].Function, "TestCaptureStartsAtCaller") {
		t.Fatalf("expected first frame to be the test, got %s", frames[0].Function)
	}
	if filepath.Base(frames[0].File) != "stacktrace_test.go" {
		t.Fatalf("unexpected file %s", frames[0].File)
	}
}

type countingReader struct {
	calls atomic.Int32
	lines []string
}

func (c *countingReader) ReadLines(string) ([]string, error) {
	c.calls.Add(1)
	return c.lines, nil
}

func TestCachedSourceReader(t *testing.T) {
	t.Parallel()

	inner := &countingReader{lines: []string{"a", "b"}}
	cached, err := NewCachedSourceReader(inner, 0)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer cached.Close()

	if _, err := cached.ReadLines("/f.go"); err != nil {
		t.Fatalf("read: %v", err)
	}
	cached.Wait()
	lines, err := cached.ReadLines("/f.go")
	if err != nil || len(lines) != 2 {
		t.Fatalf("unexpected cached read %v %v", lines, err)
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected one underlying read, got %d", inner.calls.Load())
	}
}

func TestFileSourceReader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "src.go")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines, err := FileSourceReader{}.ReadLines(path)
	if err != nil || len(lines) != 3 || lines[2] != "three" {
		t.Fatalf("unexpected lines %v %v", lines, err)
	}
	if _, err := (FileSourceReader{}).ReadLines(filepath.Join(t.TempDir(), "missing.go")); err == nil {
		t.Fatal("expected missing file error")
	}
}
