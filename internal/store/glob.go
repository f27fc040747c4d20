package store

// Match reports whether key matches pattern, where '*' matches any
// sequence (including empty) and every other character, '?' included,
// is matched literally. This is the only glob semantic spec.md requires
// (see SPEC_FULL.md's Open Question resolution for KEYS).
func Match(pattern, key string) bool {
	var pi, ki int
	starIdx, matchIdx := -1, 0
	for ki < len(key) {
		if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = ki
			pi++
		} else if pi < len(pattern) && pattern[pi] == key[ki] {
			pi++
			ki++
		} else if starIdx >= 0 {
			pi = starIdx + 1
			matchIdx++
			ki = matchIdx
		} else {
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
