// Package sanitize normalizes prompt text before it is sent to a provider and
// defuses role-injection phrases without rejecting any input.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	unicodeReplacer = strings.NewReplacer(
		"\u2060", "", "\u180E", "",
		"\u2028", "\n", "\u2029", "\n\n",
		"\u200B", "", "\u200C", "",
		"\u200D", "", "\uFEFF", "",
		"\u00AD", "", "\u205F", " ",
		"\u202A", "", "\u202B", "",
		"\u202C", "", "\u202D", "", "\u202E", "",
	)

	controlCharsRegex     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multipleNewlinesRegex = regexp.MustCompile(`\n{3,}`)
)

// Pseudo tags are removed first, until none is left, so that removing one
// cannot splice a role marker or a new tag together.
var pseudoTagRegex = regexp.MustCompile(`(?i)<\s*/?\s*(?:system|instructions?)\s*>`)

// Rules run in order over the whole prompt. Role markers match anywhere,
// including inside words, so no "system:" survives.
var injectionRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?(?:the\s+)?(?:previous|prior|above)\s+instructions`), "[instrucción omitida]"},
	{regexp.MustCompile(`(?i)ignora\s+(?:todas\s+)?las\s+instrucciones\s+(?:anteriores|previas)`), "[instrucción omitida]"},
	{regexp.MustCompile(`(?i)system\s*:`), "user said:"},
	{regexp.MustCompile(`(?i)assistant\s*:`), "user said:"},
}

// Prompt returns s with invisible and control characters removed, line
// whitespace collapsed, and injection phrases rewritten. It is idempotent.
func Prompt(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = unicodeReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")

	s = normalizeLines(s)

	for {
		stripped := pseudoTagRegex.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	for _, rule := range injectionRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}

	s = normalizeLines(s)
	s = multipleNewlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = normalizeLineWhitespace(lines[i])
	}
	return strings.Join(lines, "\n")
}

func normalizeLineWhitespace(line string) string {
	var b strings.Builder
	var space bool

	for _, r := range line {
		switch {
		case unicode.IsSpace(r) || r == '\u00A0':
			if !space {
				b.WriteRune(' ')
				space = true
			}
		default:
			b.WriteRune(r)
			space = false
		}
	}

	return strings.TrimSpace(b.String())
}
