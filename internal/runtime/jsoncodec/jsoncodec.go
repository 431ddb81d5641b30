// Package jsoncodec is the single JSON entry point used for event payloads.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// Map keys are sorted so that identical events encode to identical bytes.
var defaultConfig = sonic.Config{
	SortMapKeys:      true,
	ValidateString:   true,
	CompactMarshaler: true,
	CopyString:       true,
}.Froze()

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}

// ToMap round-trips v through JSON and returns the generic object form.
func ToMap(v any) (map[string]any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
