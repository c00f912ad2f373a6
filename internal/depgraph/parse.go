package depgraph

import (
	"regexp"
	"sort"
	"strconv"
)

var (
	depPattern      = regexp.MustCompile(`(?i)(?:depends on|blocked by)\s+(#\d+(?:,\s*#\d+)*)`)
	issueNumPattern = regexp.MustCompile(`#(\d+)`)
)

// ParseDeps extracts issue dependencies from a forge issue body, looking
// for "Depends on #N" / "Blocked by #N" (case-insensitive, comma-separated
// lists supported). Kept from the teacher's graph.ParseDeps for refining
// freshly-fetched issues whose dependencies are only stated as prose,
// before depends_on is populated in the structured plan.
func ParseDeps(body string) []int {
	seen := map[int]bool{}
	for _, match := range depPattern.FindAllStringSubmatch(body, -1) {
		for _, numMatch := range issueNumPattern.FindAllStringSubmatch(match[1], -1) {
			n, err := strconv.Atoi(numMatch[1])
			if err != nil {
				continue
			}
			seen[n] = true
		}
	}

	result := make([]int, 0, len(seen))
	for n := range seen {
		result = append(result, n)
	}
	sort.Ints(result)
	return result
}
