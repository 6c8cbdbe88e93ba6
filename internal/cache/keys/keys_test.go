package keys

import (
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestDeterminism_EquivalentPathsSameKey(t *testing.T) {
	k1 := Meta("/data/dem/../dem/elev.tif")
	k2 := Meta(" /data/dem/elev.tif ")
	if k1 != k2 {
		t.Fatalf("keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.HasPrefix(k1, "rasterman:meta:v1:/data/dem/elev.tif:h=") {
		t.Fatalf("unexpected key %s", k1)
	}
}

func TestRelativePathsResolve(t *testing.T) {
	abs, err := filepath.Abs("a.asc")
	if err != nil {
		t.Skip(err)
	}
	if Meta("a.asc") != Meta(abs) {
		t.Fatalf("relative and absolute keys differ")
	}
}

func TestSanitize_OnlySafeCharacters(t *testing.T) {
	k := Meta("/data/my  rasters/höhe (1).tif")
	if !regexp.MustCompile(`^[A-Za-z0-9:/._=\-]+$`).MatchString(k) {
		t.Fatalf("key contains disallowed characters: %s", k)
	}
	if Meta("/data/a b.tif") == Meta("/data/a_b.tif") {
		t.Fatalf("hash must separate paths with the same readable form")
	}
}

func TestLongPathsTruncated(t *testing.T) {
	long := "/" + strings.Repeat("x", 400) + ".tif"
	k := Meta(long)
	if len(k) > 220 {
		t.Fatalf("key too long: %d", len(k))
	}
	if !strings.Contains(k, ".tif:h=") {
		t.Fatalf("truncation should keep the file name: %s", k)
	}
}
