package gate

import (
	"regexp"
	"strings"
)

// strippedPatterns are removed by Sanitize. This is hygiene on top of
// ValidateMessages, not a replacement for it.
var strippedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<\s*script\b.*?<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)<\s*/?\s*(script|iframe|object|embed|style)\b[^>]*>`),
	regexp.MustCompile(`(?i)\b(javascript|vbscript)\s*:`),
	regexp.MustCompile(`(?i)\bdata\s*:\s*text/html[^,\s]*,?`),
}

// eventAttrPattern matches one inline on* handler inside an opening tag. The
// tag prefix is captured so only the attribute is removed.
var eventAttrPattern = regexp.MustCompile(`(?i)(<[a-z][^>]*?)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]*)`)

// maxAttrPasses bounds the rewrites for tags carrying several handlers.
const maxAttrPasses = 8

// Sanitize trims content, truncates it to maxLength runes and strips a fixed
// set of dangerous substrings. maxLength <= 0 disables truncation.
func Sanitize(content string, maxLength int) string {
	s := strings.TrimSpace(content)
	if maxLength > 0 {
		s = truncateRunes(s, maxLength)
	}
	for _, p := range strippedPatterns {
		s = p.ReplaceAllString(s, "")
	}
	for i := 0; i < maxAttrPasses && eventAttrPattern.MatchString(s); i++ {
		s = eventAttrPattern.ReplaceAllString(s, "$1")
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
