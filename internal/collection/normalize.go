package collection

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var leadingArticles = []string{"the ", "a ", "an "}

// normalizeIdentity is NFC + case-fold, used for identity comparisons
// (album keys, artist keys, genre keys) where articles must NOT be
// stripped — "The The" and "The" are different artists.
func normalizeIdentity(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// normalizeSortKey additionally strips one leading article, used only
// when ordering listings, never for identity.
func normalizeSortKey(s string) string {
	folded := normalizeIdentity(s)
	for _, article := range leadingArticles {
		if strings.HasPrefix(folded, article) {
			return folded[len(article):]
		}
	}
	return folded
}

// foldToken lowercases and ASCII-folds s for the text index: diacritics
// are stripped via a pragmatic rune-range filter (NFD decomposition,
// dropping combining marks) rather than a full transliteration table,
// since no dedicated ASCII-folding library is present in the pool.
func foldToken(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue // combining mark, drop for ASCII-folding
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func tokenize(s string) []string {
	folded := foldToken(s)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
