package position

import (
	"strings"
	"unicode"
)

// StripCommentSyntax removes a single surrounding comment wrapper
// (//, #, /** */, /* */, <!-- -->) and trims the remaining content.
func StripCommentSyntax(text string) string {
	t := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(t, "//"):
		t = strings.TrimPrefix(t, "//")
	case strings.HasPrefix(t, "#"):
		t = strings.TrimPrefix(t, "#")
	case strings.HasPrefix(t, "/**"):
		t = strings.TrimSuffix(strings.TrimPrefix(t, "/**"), "*/")
	case strings.HasPrefix(t, "/*"):
		t = strings.TrimSuffix(strings.TrimPrefix(t, "/*"), "*/")
	case strings.HasPrefix(t, "<!--"):
		t = strings.TrimSuffix(strings.TrimPrefix(t, "<!--"), "-->")
	}
	return strings.TrimSpace(t)
}

// Normalize reduces text to a form that survives incidental reformatting:
// comment syntax stripped, all whitespace removed, lower-cased. Two spans
// are considered the same text when their normalized forms are equal.
func Normalize(text string) string {
	content := StripCommentSyntax(text)
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Matches reports whether a and b are the same text after normalization.
func Matches(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
