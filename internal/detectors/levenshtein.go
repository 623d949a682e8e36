package detectors

// Levenshtein returns the edit distance between two strings, computed over
// runes with a two-row dynamic program.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j-1]+cost, curr[j-1]+1, prev[j]+1)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity normalizes edit distance by the longer string's length,
// yielding 1.0 for identical strings and 0.0 for fully dissimilar ones.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > la {
		longer = lb
	}
	if longer == 0 {
		return 1.0
	}
	return float64(longer-Levenshtein(a, b)) / float64(longer)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
