package transcription

import (
	"strings"
)

// MaxOverlapTokens bounds the suffix/prefix search between neighbouring
// transcripts. It matches the most words expected within a segment overlap.
const MaxOverlapTokens = 10

// Reconcile merges index-ordered segment transcripts into one transcript,
// dropping the words repeated across each overlap. When no overlap is found
// the next transcript is appended verbatim: a few duplicated words are
// preferred over erasing real content.
func Reconcile(texts []string) string {
	switch len(texts) {
	case 0:
		return ""
	case 1:
		return texts[0]
	}

	combined := strings.Fields(texts[0])
	for _, text := range texts[1:] {
		next := strings.Fields(text)
		if k := overlapLength(combined, next); k > 0 {
			combined = append(combined, next[k:]...)
			continue
		}
		combined = append(combined, next...)
	}

	return strings.TrimSpace(strings.Join(combined, " "))
}

// overlapLength returns the largest k such that the last k tokens of left
// equal the first k tokens of right, or 0 when there is none
func overlapLength(left, right []string) int {
	limit := MaxOverlapTokens
	if len(left) < limit {
		limit = len(left)
	}
	if len(right) < limit {
		limit = len(right)
	}

	for k := limit; k > 0; k-- {
		if tokensEqual(left[len(left)-k:], right[:k]) {
			return k
		}
	}
	return 0
}

func tokensEqual(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
