package stacktrace

import (
	"os"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
)

// SourceReader loads the lines of a source file.
type SourceReader interface {
	ReadLines(path string) ([]string, error)
}

// FileSourceReader reads straight from the filesystem.
type FileSourceReader struct{}

func (FileSourceReader) ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), "\n"), nil
}

// SourceReaderFunc adapts a function to SourceReader.
type SourceReaderFunc func(path string) ([]string, error)

func (f SourceReaderFunc) ReadLines(path string) ([]string, error) { return f(path) }

const defaultSourceCacheBytes = 32 << 20

// CachedSourceReader memoises successful reads in a cost-bounded ristretto
// cache keyed by path. Failed reads are not cached.
type CachedSourceReader struct {
	next  SourceReader
	cache *ristretto.Cache[string, []string]
}

// NewCachedSourceReader wraps next; maxBytes <= 0 selects 32 MiB.
func NewCachedSourceReader(next SourceReader, maxBytes int64) (*CachedSourceReader, error) {
	if next == nil {
		next = FileSourceReader{}
	}
	if maxBytes <= 0 {
		maxBytes = defaultSourceCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []string]{
		NumCounters: 1e4,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedSourceReader{next: next, cache: cache}, nil
}

func (r *CachedSourceReader) ReadLines(path string) ([]string, error) {
	if lines, ok := r.cache.Get(path); ok {
		return lines, nil
	}
	lines, err := r.next.ReadLines(path)
	if err != nil {
		return nil, err
	}
	var cost int64
	for _, l := range lines {
		cost += int64(len(l)) + 1
	}
	r.cache.Set(path, lines, cost)
	return lines, nil
}

// Wait blocks until pending cache writes are visible.
func (r *CachedSourceReader) Wait() { r.cache.Wait() }

func (r *CachedSourceReader) Close() { r.cache.Close() }
