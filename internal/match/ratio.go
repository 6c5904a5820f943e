package match

// Ratio returns the Ratcliff/Obershelp similarity of a and b in [0, 1]:
// twice the number of matched runes over the combined length.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matched(ra, rb)) / float64(total)
}

// matched counts runes covered by the longest common block and,
// recursively, the blocks to its left and right.
func matched(a, b []rune) int {
	i, j, n := longestBlock(a, b)
	if n == 0 {
		return 0
	}
	return n + matched(a[:i], b[:j]) + matched(a[i+n:], b[j+n:])
}

// longestBlock finds the earliest longest common substring.
func longestBlock(a, b []rune) (int, int, int) {
	var (
		bestI, bestJ, bestN int
		prev                = make([]int, len(b)+1)
		cur                 = make([]int, len(b)+1)
	)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestN {
					bestN = cur[j]
					bestI, bestJ = i-cur[j], j-cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestN
}
