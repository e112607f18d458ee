package factory

import (
	"strings"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		base, rel string
		want      string
	}{
		{"/tmp/data", "a.txt", "/tmp/data/a.txt"},
		{"/tmp/data/", "a.txt", "/tmp/data/a.txt"},
		{"/tmp/data", "/a.txt", "/tmp/data/a.txt"},
		{"/tmp/data//", "//a.txt", "/tmp/data/a.txt"},
		{"", "a.txt", "/a.txt"},
		{"/base", "sub//dir///a.txt", "/base/sub/dir/a.txt"},
	}

	for _, tt := range tests {
		got := canonicalPath(tt.base, tt.rel)
		if got != tt.want {
			t.Errorf("canonicalPath(%q, %q) = %q, want %q", tt.base, tt.rel, got, tt.want)
		}
	}
}

func TestCanonicalPathIdempotent(t *testing.T) {
	base := "/tmp//data"
	rels := []string{"a.txt", "//a.txt", "sub///b.json", "x//y//z.yaml"}

	for _, rel := range rels {
		first := canonicalPath(base, rel)

		// Feeding the canonicalized remainder back in must not change the
		// result.
		stripped := strings.TrimPrefix(first, canonicalPath(base, ""))
		second := canonicalPath(base, stripped)
		if second != first {
			t.Errorf("canonicalPath not idempotent for %q: %q != %q", rel, second, first)
		}
	}
}

func TestCanonicalPathTruncates(t *testing.T) {
	long := strings.Repeat("a", 2*PathMax)
	got := canonicalPath("/base", long)
	if len(got) != PathMax {
		t.Errorf("expected truncation to %d bytes, got %d", PathMax, len(got))
	}
}

func TestNameHashStable(t *testing.T) {
	a := nameHash("/tmp/data/a.txt")
	b := nameHash("/tmp/data/a.txt")
	if a != b {
		t.Errorf("hash not stable: %d != %d", a, b)
	}
	if nameHash("/tmp/data/a.txt") == nameHash("/tmp/data/b.txt") {
		t.Error("distinct paths hashed to the same value")
	}
}
