package runtime

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"regexp"

	"github.com/drblury/faultline/internal/runtime/breadcrumb"
	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/stacktrace"
)

// Mask replaces sanitized values.
const Mask = "********"

const (
	defaultSensitiveKeys = `(?i)(authorization|password|passwd|secret|password_confirmation|card_number|auth_pw|api_?key|access_?token|refresh_?token|private_?key)`
	creditCardPattern    = `^(?:\d[ -]*?){13,19}$`
)

// Sanitizer masks values stored under sensitive keys and strings that look
// like credit card numbers (Luhn-valid digit runs). Applying it to its own
// output changes nothing.
type Sanitizer struct {
	keys   []*regexp.Regexp
	values *regexp.Regexp
}

// NewSanitizer compiles the built-in key pattern plus extra.
func NewSanitizer(extra ...string) (*Sanitizer, error) {
	s := &Sanitizer{values: regexp.MustCompile(creditCardPattern)}
	for _, pattern := range append([]string{defaultSensitiveKeys}, extra...) {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile sanitize pattern %q: %w", pattern, err)
		}
		s.keys = append(s.keys, re)
	}
	return s, nil
}

func (s *Sanitizer) sensitiveKey(key string) bool {
	for _, re := range s.keys {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// maxSanitizeDepth bounds recursion for containers that did not pass
// through the serializer.
const maxSanitizeDepth = 64

// Value returns the sanitized form of v stored under key, and whether it
// differs from v. Containers are copied on change, never mutated. Cyclic
// containers are left as they are at the point of revisit.
func (s *Sanitizer) Value(key string, v any) (any, bool) {
	w := sanitizeWalk{s: s, seen: map[uintptr]struct{}{}}
	return w.value(key, v, 0)
}

// Map sanitizes every entry of m. It returns m itself when nothing changed.
func (s *Sanitizer) Map(m map[string]any) (map[string]any, bool) {
	w := sanitizeWalk{s: s, seen: map[uintptr]struct{}{}}
	return w.mapping(m, 0)
}

// cardNumber reports whether str looks like a payment card number: 13 to 19
// digits, optionally grouped, with a valid Luhn checksum.
func (s *Sanitizer) cardNumber(str string) bool {
	return s.values.MatchString(str) && luhnValid(str)
}

func luhnValid(str string) bool {
	sum, n := 0, 0
	for i := len(str) - 1; i >= 0; i-- {
		ch := str[i]
		if ch < '0' || ch > '9' {
			continue
		}
		d := int(ch - '0')
		if n%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		n++
	}
	return n > 0 && sum%10 == 0
}

// sanitizeWalk tracks the containers on the current path.
type sanitizeWalk struct {
	s    *Sanitizer
	seen map[uintptr]struct{}
}

func (w *sanitizeWalk) enter(ptr uintptr, depth int) bool {
	if depth >= maxSanitizeDepth {
		return false
	}
	if ptr == 0 {
		return true
	}
	if _, ok := w.seen[ptr]; ok {
		return false
	}
	w.seen[ptr] = struct{}{}
	return true
}

func (w *sanitizeWalk) leave(ptr uintptr) {
	delete(w.seen, ptr)
}

func (w *sanitizeWalk) value(key string, v any, depth int) (any, bool) {
	s := w.s
	if key != "" && s.sensitiveKey(key) {
		if str, ok := v.(string); ok && str == Mask {
			return v, false
		}
		return Mask, true
	}
	switch x := v.(type) {
	case string:
		if s.cardNumber(x) {
			return Mask, true
		}
	case map[string]any:
		if out, changed := w.mapping(x, depth); changed {
			return out, true
		}
	case map[string]string:
		var out map[string]string
		for k, str := range x {
			nv, changed := w.value(k, str, depth+1)
			if !changed {
				continue
			}
			if out == nil {
				out = maps.Clone(x)
			}
			out[k] = nv.(string)
		}
		if out != nil {
			return out, true
		}
	case []any:
		ptr := sliceIdentity(x)
		if !w.enter(ptr, depth) {
			return v, false
		}
		defer w.leave(ptr)
		var out []any
		for i, item := range x {
			nv, changed := w.value("", item, depth+1)
			if !changed {
				continue
			}
			if out == nil {
				out = append([]any(nil), x...)
			}
			out[i] = nv
		}
		if out != nil {
			return out, true
		}
	case []string:
		var out []string
		for i, item := range x {
			if !s.cardNumber(item) {
				continue
			}
			if out == nil {
				out = append([]string(nil), x...)
			}
			out[i] = Mask
		}
		if out != nil {
			return out, true
		}
	}
	return v, false
}

func (w *sanitizeWalk) mapping(m map[string]any, depth int) (map[string]any, bool) {
	ptr := reflect.ValueOf(m).Pointer()
	if !w.enter(ptr, depth) {
		return m, false
	}
	defer w.leave(ptr)

	var out map[string]any
	for k, v := range m {
		nv, changed := w.value(k, v, depth+1)
		if !changed {
			continue
		}
		if out == nil {
			out = maps.Clone(m)
		}
		out[k] = nv
	}
	if out == nil {
		return m, false
	}
	return out, true
}

func sliceIdentity(x []any) uintptr {
	if len(x) == 0 {
		return 0
	}
	return reflect.ValueOf(x).Pointer()
}

// Query masks sensitive parameters of a raw query string. The input is
// returned verbatim when nothing needed masking.
func (s *Sanitizer) Query(raw string) string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	changed := false
	for k, vs := range values {
		for i, v := range vs {
			if nv, ok := s.Value(k, v); ok {
				vs[i] = nv.(string)
				changed = true
			}
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

// Event sanitizes request, user, extra, contexts, tags, breadcrumb metadata
// and stack frame variables of evt. The trace context carries span
// identifiers and is left alone.
func (s *Sanitizer) Event(evt *event.Event) {
	if evt.Request != nil {
		req, _ := s.Map(evt.Request)
		if qs, ok := req["query_string"].(string); ok {
			if masked := s.Query(qs); masked != qs {
				req = maps.Clone(req)
				req["query_string"] = masked
			}
		}
		evt.Request = req
	}
	evt.User, _ = s.Map(evt.User)
	evt.Extra, _ = s.Map(evt.Extra)
	for name, values := range evt.Contexts {
		if name == event.ContextTrace {
			continue
		}
		if out, changed := s.Map(values); changed {
			evt.Contexts[name] = out
		}
	}
	for k, v := range evt.Tags {
		if nv, changed := s.Value(k, v); changed {
			evt.Tags[k] = nv.(string)
		}
	}
	for i, b := range evt.Breadcrumbs {
		evt.Breadcrumbs[i] = s.breadcrumb(b)
	}
	for i := range evt.Exceptions {
		evt.Exceptions[i].Stacktrace = s.stacktrace(evt.Exceptions[i].Stacktrace)
	}
	evt.Stacktrace = s.stacktrace(evt.Stacktrace)
}

func (s *Sanitizer) breadcrumb(b *breadcrumb.Breadcrumb) *breadcrumb.Breadcrumb {
	if b == nil {
		return nil
	}
	for k, v := range b.Metadata() {
		if nv, changed := s.Value(k, v); changed {
			b = b.WithMetadata(k, nv)
		}
	}
	return b
}

// stacktrace copies st before masking frame variables because traces may be
// shared with the capture hint.
func (s *Sanitizer) stacktrace(st *stacktrace.Stacktrace) *stacktrace.Stacktrace {
	if st == nil {
		return nil
	}
	var out *stacktrace.Stacktrace
	for i, f := range st.Frames {
		vars, changed := s.Map(f.Vars)
		if !changed {
			continue
		}
		if out == nil {
			out = &stacktrace.Stacktrace{Frames: append([]stacktrace.Frame(nil), st.Frames...)}
		}
		out.Frames[i].Vars = vars
	}
	if out == nil {
		return st
	}
	return out
}

// SanitizeMiddleware masks secrets as the last stage before delivery. Key
// patterns from the configuration and extraKeys extend the built-in list.
func SanitizeMiddleware(extraKeys []string) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "sanitize",
		Priority: PrioritySanitize,
		Builder: func(c *Client) (Stage, error) {
			patterns := append(append([]string(nil), c.Conf.SanitizeKeys...), extraKeys...)
			s, err := NewSanitizer(patterns...)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				s.Event(evt)
				return next(ctx, evt, hint)
			}, nil
		},
	}
}
