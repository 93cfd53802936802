package sync

import (
	"github.com/mrlokans/moonsync/internal/utils"
)

// matchThreshold is the minimum title similarity for treating an existing
// document as the same book under a changed title.
const matchThreshold = 0.80

// Similarity scores two titles in [0, 1] as one minus the edit distance
// over the longer normalized form. Titles are compared after lowercasing,
// stripping book-file extensions and dropping a trailing parenthetical, so
// subtitle decorations do not defeat the match.
func Similarity(a, b string) float64 {
	ka, kb := utils.MatchKey(a), utils.MatchKey(b)
	if ka == kb {
		return 1
	}
	longest := len([]rune(ka))
	if l := len([]rune(kb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ka, kb))/float64(longest)
}

// Matches reports whether two titles are close enough to be the same book.
func Matches(a, b string) bool {
	return Similarity(a, b) >= matchThreshold
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
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
