package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseBlockList parses a block selection such as "1,3,5-7" into ascending,
// de-duplicated block numbers.
func parseBlockList(s string) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		}
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad block number %q", part)
		}
		last, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("bad block number %q", part)
		}
		if first < 1 || last < first {
			return nil, fmt.Errorf("bad block range %q", part)
		}
		for n := first; n <= last; n++ {
			seen[n] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no blocks in %q", s)
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}
