package brainsim

import (
	"strings"
	"unicode"
)

var keywordExpressions = []struct {
	expression string
	words      []string
}{
	{"happy", []string{"chiste", "joke", "risa", "gracioso", "😂", "🤣"}},
	{"sad", []string{"triste", "sad", "llorar", "mal"}},
	{"surprised", []string{"sorpresa", "surprise", "wow", "increíble"}},
}

// InferExpression picks a preset name from keywords in the user's text.
// Questions look thoughtful; anything else is neutral.
func InferExpression(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, k := range keywordExpressions {
		for _, w := range k.words {
			if strings.Contains(lower, w) {
				return k.expression
			}
		}
	}
	if strings.Contains(lower, "?") {
		return "thinking"
	}
	return "neutral"
}

// SplitSentences cuts text after each run of sentence punctuation. Every
// piece keeps its trailing whitespace so the pieces concatenate back to
// text exactly.
func SplitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && isTerminal(runes[j]) {
			j++
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		out = append(out, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
