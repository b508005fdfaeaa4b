package consent

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/use-agent/tagscope/signatures"
)

var folder = cases.Fold()

// normalizeLabel folds case, applies NFKC and collapses whitespace so that
// "Accept ALL" and "accept all" compare equal.
func normalizeLabel(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

var (
	acceptPhrases = normalizeAll(signatures.AcceptPhrases)
	rejectWords   = normalizeAll(signatures.RejectWords)
)

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, normalizeLabel(s))
	}
	return out
}

// isAcceptLabel reports whether a button label reads as "accept cookies".
func isAcceptLabel(raw string) bool {
	text := normalizeLabel(raw)
	if text == "" || len([]rune(text)) > signatures.MaxButtonTextLength {
		return false
	}
	for _, w := range rejectWords {
		if containsPhrase(text, w) {
			return false
		}
	}
	for _, p := range acceptPhrases {
		if containsPhrase(text, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches phrase inside text on word boundaries. Scripts that
// do not separate words with spaces fall back to plain substring matching.
func containsPhrase(text, phrase string) bool {
	if text == phrase {
		return true
	}
	if !spaced(phrase) {
		return strings.Contains(text, phrase)
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		if boundaryBefore(text, idx) && boundaryAfter(text, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func spaced(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return false
		}
	}
	return true
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := lastRune(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := []rune(s[i:])[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
