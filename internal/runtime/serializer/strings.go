package serializer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

type decoder struct {
	name string
	enc  encoding.Encoding
}

// resolveDecoders maps the configured names to x/text encodings. Unknown names
// are skipped. A UTF-8 entry contributes nothing beyond the validity check.
func resolveDecoders(names []string) []decoder {
	out := make([]decoder, 0, len(names))
	for _, name := range names {
		canonical, err := htmlindex.Get(name)
		if err != nil {
			continue
		}
		if n, _ := htmlindex.Name(canonical); n == "utf-8" {
			continue
		}
		out = append(out, decoder{name: name, enc: canonical})
	}
	return out
}

func (s *Serializer) toUTF8(value string) string {
	if utf8.ValidString(value) {
		return value
	}
	for _, d := range s.decoders {
		decoded, err := d.enc.NewDecoder().String(value)
		if err == nil && utf8.ValidString(decoded) {
			return decoded
		}
	}
	return strings.ToValidUTF8(value, string(utf8.RuneError))
}

// clip cuts value to at most limit bytes, marker included, on a rune boundary.
func clip(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit - len(ClippedMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + ClippedMarker
}
