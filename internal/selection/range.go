// Package selection maps user-requested chapter selections onto admissible
// ones: a human-typed range expression is decoded to chapter indices, and a
// validator evicts chapters until the assembled transcript fits the token
// threshold.
package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseRange decodes a human-typed chapter range like "1-3,5,8-6" into a
// de-duplicated ascending slice of 0-based indices. Tokens are 1-based;
// "8-6" behaves like "6-8". Malformed or out-of-range tokens are silently
// dropped, never an error; the UI treats a partial parse as partial input.
func ParseRange(s string, totalCount int) []int {
	seen := make(map[int]bool)
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if lo, hi, ok := parsePair(token); ok {
			// Clamp to the valid window first so an absurd span like
			// "1-9000000000000000000" costs totalCount iterations, not hi.
			if lo < 1 {
				lo = 1
			}
			if hi > totalCount {
				hi = totalCount
			}
			for v := lo; v <= hi; v++ {
				seen[v-1] = true
			}
			continue
		}
		v, err := strconv.Atoi(token)
		if err != nil || v < 1 || v > totalCount {
			continue
		}
		seen[v-1] = true
	}

	indices := make([]int, 0, len(seen))
	for v := range seen {
		indices = append(indices, v)
	}
	sort.Ints(indices)
	return indices
}

// parsePair parses "a-b" returning the bounds in ascending order.
func parsePair(token string) (lo, hi int, ok bool) {
	a, b, found := strings.Cut(token, "-")
	if !found {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(a))
	hi, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// FormatRange encodes 0-based indices as a 1-based range expression,
// grouping maximal runs of consecutive values ("1-3,5-8"). The output
// round-trips through ParseRange for any in-range input.
func FormatRange(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)

	var parts []string
	runStart := sorted[0]
	prev := sorted[0]
	flush := func(end int) {
		if runStart == end {
			parts = append(parts, strconv.Itoa(runStart+1))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", runStart+1, end+1))
		}
	}
	for _, v := range sorted[1:] {
		if v == prev || v == prev+1 {
			prev = v
			continue
		}
		flush(prev)
		runStart = v
		prev = v
	}
	flush(prev)
	return strings.Join(parts, ",")
}
