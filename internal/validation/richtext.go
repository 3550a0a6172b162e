package validation

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var mentionRegex = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@])@([A-Za-z0-9_]{3,30})\b`)

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style contents are dropped.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenTag(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenTag(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenTag(name string) bool {
	return name == "script" || name == "style"
}

// Mentions returns the distinct @usernames in text, in order of first
// appearance. Matching is case-insensitive; the first spelling wins.
func Mentions(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range mentionRegex.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(m[1])
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
