package factory

import "github.com/cespare/xxhash/v2"

// PathMax bounds the canonical path, base path included. Longer inputs are
// truncated; callers are expected to stay well under the limit.
const PathMax = 1024

// canonicalPath joins base and rel with a slash and collapses every run of
// slashes to a single one. No "." or ".." resolution and no filesystem
// access: cache identity must not depend on filesystem state, so the same
// input strings always map to the same slot.
func canonicalPath(base, rel string) string {
	joined := base + "/" + rel
	out := make([]byte, 0, len(joined))
	var last byte
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		if c != '/' || last != '/' {
			out = append(out, c)
		}
		last = c
	}
	if len(out) > PathMax {
		out = out[:PathMax]
	}
	return string(out)
}

// nameHash is the 64-bit identity of a canonical path.
func nameHash(canonical string) uint64 {
	return xxhash.Sum64String(canonical)
}
