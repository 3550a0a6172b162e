// Package slug builds URL-safe identifiers for questions and tags.
package slug

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// maxBase bounds the readable part of a question slug.
	maxBase = 80
	// maxTag matches the width of the tags.slug column.
	maxTag = 60
)

// symbolWords keeps tags such as "C", "C++" and "C#" apart.
var symbolWords = map[rune]string{
	'+': "plus",
	'#': "sharp",
}

// Make lowercases s, strips accents and joins the remaining letter and
// digit runs with single hyphens. It returns "" when nothing survives.
func Make(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range fold(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// Tag is the slug of a tag name. Unlike Make it keeps letters and digits
// of any script and spells out '+' and '#' as words, so "c++" becomes
// "c-plus-plus" and "c#" becomes "c-sharp". The result is cut to the
// width of the slug column on a rune boundary.
func Tag(name string) string {
	var b strings.Builder
	pendingDash := false
	word := func(w string) {
		if pendingDash && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingDash = false
		b.WriteString(w)
	}
	for _, r := range fold(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word(string(r))
		case symbolWords[r] != "":
			pendingDash = true
			word(symbolWords[r])
			pendingDash = true
		default:
			pendingDash = true
		}
	}
	out := b.String()
	for len(out) > maxTag {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return strings.TrimRight(out, "-")
}

// fold lowercases s and strips combining accents.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Unique returns Make(title) truncated to a readable length, followed by
// the first 8 characters of a random UUID.
func Unique(title string) string {
	base := Make(title)
	if len(base) > maxBase {
		base = strings.TrimRight(base[:maxBase], "-")
	}
	suffix := uuid.NewString()[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
