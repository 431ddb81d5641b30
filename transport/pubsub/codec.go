package pubsub

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/jsoncodec"
)

// Encoding selects the payload wire format.
type Encoding string

const (
	EncodingJSON     Encoding = "json"
	EncodingMsgpack  Encoding = "msgpack"
	EncodingProtobuf Encoding = "protobuf"
)

// ContentType returns the MIME type advertised for e.
func (e Encoding) ContentType() string {
	switch e {
	case EncodingMsgpack:
		return "application/msgpack"
	case EncodingProtobuf:
		return "application/x-protobuf"
	default:
		return "application/json"
	}
}

// Compression selects the payload compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseEncoding maps a config value to an Encoding. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	case EncodingProtobuf:
		return EncodingProtobuf, nil
	}
	return "", fmt.Errorf("pubsub: unknown encoding %q", s)
}

// ParseCompression maps a config value to a Compression. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip:
		return CompressionGzip, nil
	case CompressionZstd:
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("pubsub: unknown compression %q", s)
}

// Encode renders evt in the given encoding.
func Encode(evt *event.Event, enc Encoding) ([]byte, error) {
	if enc == EncodingJSON || enc == "" {
		return evt.MarshalJSON()
	}
	payload, err := evt.ToMap()
	if err != nil {
		return nil, err
	}
	return encodeMap(payload, enc)
}

func encodeMap(payload map[string]any, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON, "":
		return jsoncodec.Marshal(payload)
	case EncodingMsgpack:
		return msgpack.Marshal(payload)
	case EncodingProtobuf:
		st, err := structpb.NewStruct(payload)
		if err != nil {
			return nil, fmt.Errorf("pubsub: build protobuf struct: %w", err)
		}
		return proto.MarshalOptions{Deterministic: true}.Marshal(st)
	}
	return nil, fmt.Errorf("pubsub: unknown encoding %q", enc)
}

// Decode turns an encoded payload back into its generic form.
func Decode(data []byte, enc Encoding) (map[string]any, error) {
	switch enc {
	case EncodingJSON, "":
		var out map[string]any
		if err := jsoncodec.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case EncodingMsgpack:
		var out map[string]any
		if err := msgpack.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	case EncodingProtobuf:
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return nil, err
		}
		return st.AsMap(), nil
	}
	return nil, fmt.Errorf("pubsub: unknown encoding %q", enc)
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// Compress applies c to data.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, _, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
	}
	return nil, fmt.Errorf("pubsub: unknown compression %q", c)
}

// Decompress reverses Compress.
func Decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionZstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(data, nil)
	}
	return nil, fmt.Errorf("pubsub: unknown compression %q", c)
}
