// Package serializer turns arbitrary Go values into bounded, wire-safe
// primitives: nil, bool, numbers, strings, []any and map[string]any.
//
// Composite values nested at or beyond MaxDepth are replaced by a short
// placeholder describing their shape. Cycles are cut at the point of revisit
// with the same placeholder. Strings are coerced to UTF-8 and clipped to
// MaxStringLength bytes.
package serializer

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxDepth        = 3
	DefaultMaxStringLength = 1024

	// ClippedMarker is appended to strings cut at MaxStringLength.
	ClippedMarker = " {clipped}"
)

type Options struct {
	MaxDepth        int
	MaxStringLength int
	// DetectOrder lists candidate encodings (WHATWG names) tried in order
	// when a string is not valid UTF-8.
	DetectOrder []string
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxStringLength <= 0 {
		o.MaxStringLength = DefaultMaxStringLength
	}
	if len(o.DetectOrder) == 0 {
		o.DetectOrder = []string{"UTF-8"}
	}
	return o
}

type Serializer struct {
	opts           Options
	representation bool
	decoders       []decoder
}

// New returns the structural serializer used for event payloads.
func New(opts Options) *Serializer {
	opts = opts.withDefaults()
	return &Serializer{opts: opts, decoders: resolveDecoders(opts.DetectOrder)}
}

// NewRepresentation returns the flavor used for stack frame variables, which
// renders every scalar as its printable form.
func NewRepresentation(opts Options) *Serializer {
	s := New(opts)
	s.representation = true
	return s
}

func (s *Serializer) Options() Options { return s.opts }

func (s *Serializer) IsRepresentation() bool { return s.representation }

// Serialize never panics for ordinary values and returns the same output for
// the same input.
func (s *Serializer) Serialize(value any) any {
	w := walker{s: s, visited: map[identity]struct{}{}}
	return w.walk(reflect.ValueOf(value), 0)
}

// SerializeString applies the UTF-8 coercion and clipping rules.
func (s *Serializer) SerializeString(value string) string {
	return clip(s.toUTF8(value), s.opts.MaxStringLength)
}

type identity struct {
	ptr  uintptr
	kind reflect.Kind
	n    int
}

type walker struct {
	s       *Serializer
	visited map[identity]struct{}
}

var (
	errorType = reflect.TypeFor[error]()
	timeType  = reflect.TypeFor[time.Time]()
)

func (w *walker) walk(v reflect.Value, depth int) any {
	if !v.IsValid() {
		return w.null()
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return w.null()
		}
	}

	if v.Type() == timeType {
		return w.s.SerializeString(v.Interface().(time.Time).Format(time.RFC3339Nano))
	}
	if v.Kind() != reflect.Interface && v.CanInterface() && v.Type().Implements(errorType) {
		if err, ok := v.Interface().(error); ok {
			return w.s.SerializeString(err.Error())
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		if w.s.representation {
			return strconv.FormatBool(v.Bool())
		}
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if w.s.representation {
			return strconv.FormatInt(v.Int(), 10)
		}
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if w.s.representation {
			return strconv.FormatUint(v.Uint(), 10)
		}
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return w.float(v.Float(), v.Type().Bits())
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(v.Complex(), 'g', -1, v.Type().Bits())
	case reflect.String:
		return w.s.SerializeString(v.String())
	case reflect.Interface:
		return w.walk(v.Elem(), depth)
	case reflect.Pointer:
		id := identity{ptr: v.Pointer(), kind: reflect.Pointer}
		if _, seen := w.visited[id]; seen {
			return placeholder(v.Elem())
		}
		w.visited[id] = struct{}{}
		defer delete(w.visited, id)
		return w.walk(v.Elem(), depth)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return w.s.SerializeString(string(v.Bytes()))
		}
		return w.sequence(v, depth)
	case reflect.Array:
		return w.sequence(v, depth)
	case reflect.Map:
		return w.mapping(v, depth)
	case reflect.Struct:
		return w.object(v, depth)
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return "Resource " + v.Kind().String()
	}
	return w.s.SerializeString(fmt.Sprint(v))
}

func (w *walker) null() any {
	if w.s.representation {
		return "null"
	}
	return nil
}

func (w *walker) float(f float64, bits int) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	if !w.s.representation {
		return f
	}
	out := strconv.FormatFloat(f, 'f', -1, bits)
	if f == math.Trunc(f) && !strings.Contains(out, ".") {
		out += ".0"
	}
	return out
}

// enter records v as an ancestor. It returns false when v is already on the
// current path.
func (w *walker) enter(v reflect.Value) (identity, bool) {
	ptr := v.Pointer()
	if ptr == 0 {
		return identity{}, true
	}
	id := identity{ptr: ptr, kind: v.Kind(), n: v.Len()}
	if _, seen := w.visited[id]; seen {
		return id, false
	}
	w.visited[id] = struct{}{}
	return id, true
}

func (w *walker) sequence(v reflect.Value, depth int) any {
	if depth >= w.s.opts.MaxDepth {
		return placeholder(v)
	}
	if v.Kind() == reflect.Slice {
		id, ok := w.enter(v)
		if !ok {
			return placeholder(v)
		}
		defer delete(w.visited, id)
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = w.walk(v.Index(i), depth+1)
	}
	return out
}

func (w *walker) mapping(v reflect.Value, depth int) any {
	if depth >= w.s.opts.MaxDepth {
		return placeholder(v)
	}
	id, ok := w.enter(v)
	if !ok {
		return placeholder(v)
	}
	defer delete(w.visited, id)

	type entry struct {
		key   string
		order string
		value reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := iter.Key()
		for k.Kind() == reflect.Interface && !k.IsNil() {
			k = k.Elem()
		}
		entries = append(entries, entry{key: fmt.Sprint(k), order: k.Type().String(), value: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].order < entries[j].order
	})

	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[w.s.SerializeString(e.key)] = w.walk(e.value, depth+1)
	}
	return out
}

func (w *walker) object(v reflect.Value, depth int) any {
	if depth >= w.s.opts.MaxDepth {
		return placeholder(v)
	}
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		out[name] = w.walk(v.Field(i), depth+1)
	}
	return out
}

// placeholder describes a composite value without looking at its contents.
func placeholder(v reflect.Value) string {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("Array of length %d", v.Len())
	case reflect.Map:
		return fmt.Sprintf("Map of length %d", v.Len())
	case reflect.Struct:
		return "Object " + v.Type().String()
	}
	return "Object " + v.Type().String()
}
