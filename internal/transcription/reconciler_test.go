package transcription

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		texts    []string
		expected string
	}{
		{
			name:     "empty",
			texts:    nil,
			expected: "",
		},
		{
			name:     "single element returned as is",
			texts:    []string{"hello world"},
			expected: "hello world",
		},
		{
			name:     "overlap of three tokens",
			texts:    []string{"the quick brown fox jumps", "brown fox jumps over the lazy dog"},
			expected: "the quick brown fox jumps over the lazy dog",
		},
		{
			name:     "no overlap appended verbatim",
			texts:    []string{"hello there", "general kenobi"},
			expected: "hello there general kenobi",
		},
		{
			name:     "case sensitive match",
			texts:    []string{"we filed the Return", "return was late"},
			expected: "we filed the Return return was late",
		},
		{
			name:     "single token overlap",
			texts:    []string{"apply for a license", "license renewal is due"},
			expected: "apply for a license renewal is due",
		},
		{
			name:     "three segments folded left",
			texts:    []string{"a b c d", "c d e f", "e f g"},
			expected: "a b c d e f g",
		},
		{
			name:     "next fully contained in overlap",
			texts:    []string{"one two three", "two three"},
			expected: "one two three",
		},
		{
			name:     "extra whitespace normalised",
			texts:    []string{"  alpha   beta ", "beta\tgamma  "},
			expected: "alpha beta gamma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Reconcile(tt.texts))
		})
	}
}

func TestReconcile_PrefersLongestOverlap(t *testing.T) {
	// Both k=2 and k=4 match; the largest wins
	assert.Equal(t, "a b a b c", Reconcile([]string{"a b a b", "a b a b c"}))
}

func TestReconcile_OverlapCap(t *testing.T) {
	words := strings.Fields("w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 w11")

	// An 11-token overlap exceeds the search cap; the 10-token window does
	// not match so nothing is de-duplicated.
	left := "start " + strings.Join(words, " ")
	right := strings.Join(words, " ") + " end"

	assert.Equal(t, left+" "+right, Reconcile([]string{left, right}), "expected verbatim append")
}

func TestReconcile_DuplicateFreeOnExactOverlap(t *testing.T) {
	source := strings.Fields("please help me register my business for goods and services tax before the end of the month")

	// Overlapping windows of the same word stream, overlapping by 3 words
	var texts []string
	for start := 0; start < len(source); start += 5 {
		end := start + 8
		if end > len(source) {
			end = len(source)
		}
		texts = append(texts, strings.Join(source[start:end], " "))
		if end == len(source) {
			break
		}
	}

	assert.Equal(t, strings.Join(source, " "), Reconcile(texts))
}
