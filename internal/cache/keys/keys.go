// Package keys builds the Redis keys under which raster metadata is cached.
package keys

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	prefix = "rasterman:meta:v1"
	// maxReadable bounds the human readable part of a key. The tail of the
	// path is kept since it holds the file name.
	maxReadable = 160
)

// Normalize returns the canonical form of a raster path: absolute when it
// can be resolved, always cleaned.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Meta returns the cache key of path. Equivalent spellings of one file share
// a key; the hash of the normalized path separates files whose readable
// forms collide.
func Meta(path string) string {
	norm := Normalize(path)
	readable := readableForm(norm)
	if len(readable) > maxReadable {
		readable = readable[len(readable)-maxReadable:]
	}
	return fmt.Sprintf("%s:%s:h=%016x", prefix, readable, xxhash.Sum64String(norm))
}

// readableForm keeps path separators, dots and ASCII alphanumerics. Spaces
// become '_', anything else '-', and runs of either collapse to one.
func readableForm(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '/' || r == '.' || r == '_' || r == '-':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return '-'
		}
	}, s)

	var b strings.Builder
	b.Grow(len(mapped))
	for i := 0; i < len(mapped); i++ {
		c := mapped[i]
		if (c == '_' || c == '-') && i > 0 && mapped[i-1] == c {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
