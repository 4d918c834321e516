package common

import (
	"strings"
	"unicode"
)

// Slugify converts a headline into a deterministic URL slug.
// Lowercases, transliterates common accented characters, collapses
// every non-alphanumeric run into a single hyphen, and trims hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	// Accented characters common in Spanish/French/German/Nordic content
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "ä", "a", "â", "a", "å", "a",
		"é", "e", "è", "e", "ë", "e", "ê", "e",
		"í", "i", "ì", "i", "ï", "i", "î", "i",
		"ó", "o", "ò", "o", "ö", "o", "ô", "o", "ø", "o",
		"ú", "u", "ù", "u", "ü", "u", "û", "u",
		"ñ", "n", "ç", "c", "ß", "ss", "æ", "ae",
	)
	s = replacer.Replace(s)

	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}
