// Package utils holds tiny helpers for query-string parsing shared by the
// HTTP handlers. Nothing here knows about giveaways or the database.
package utils

import "strconv"

// AtoiDefault parses s as an int, falling back to def when s is empty or
// not a number. Query params like page, page_size and limit all go through
// this so a malformed value degrades to the default instead of erroring.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds n to the inclusive [lo, hi] range.
func ClampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
