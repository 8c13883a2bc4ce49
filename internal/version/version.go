// Package version compares dotted version strings such as "0.9.5" or
// "0.10.0-dev+g1b2c3", tolerating dev segments and build metadata.
package version

import (
	"strconv"
	"strings"
)

// GE reports whether v1 >= v2. Anything after '+' is build metadata and is
// ignored; a ".dev" or "dev" marker splits into its own numeric part, so
// "0.3.1.dev16" > "0.3.1". Unparseable segments count as zero.
func GE(v1, v2 string) bool {
	p1 := split(v1)
	p2 := split(v2)

	for len(p1) < len(p2) {
		p1 = append(p1, 0)
	}
	for len(p2) < len(p1) {
		p2 = append(p2, 0)
	}

	for i := range p1 {
		if p1[i] > p2[i] {
			return true
		}
		if p1[i] < p2[i] {
			return false
		}
	}
	return true
}

func split(v string) []int {
	v, _, _ = strings.Cut(v, "+")
	v = strings.ReplaceAll(v, ".dev", ".")
	v = strings.ReplaceAll(v, "dev", ".")
	v = strings.TrimPrefix(v, "v")

	var parts []int
	for _, s := range strings.Split(v, ".") {
		n, err := strconv.Atoi(s)
		if err != nil {
			n = 0
		}
		parts = append(parts, n)
	}
	return parts
}
