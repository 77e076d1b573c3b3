package orchestrator

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// RepeatRunLimit is the length of a run of one identical non-space character
// that marks output as degenerate.
const RepeatRunLimit = 20

// Reasons reported by CheckOutput.
const (
	ReasonEmpty    = "empty"
	ReasonTooShort = "too_short"
	ReasonRepeated = "repeated_characters"
	ReasonHTML     = "html_page"
)

// CheckOutput returns "" when text looks like model output, otherwise the
// reason it was rejected.
func CheckOutput(text string, minLength int) string {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return ReasonEmpty
	case utf8.RuneCountInString(trimmed) < minLength:
		return ReasonTooShort
	case hasRepeatedRun(trimmed, RepeatRunLimit):
		return ReasonRepeated
	case looksLikeHTML(trimmed):
		return ReasonHTML
	}
	return ""
}

func hasRepeatedRun(s string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			prev, run = 0, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= limit {
			return true
		}
	}
	return false
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return true
	}
	return strings.Contains(lower, "<html") && strings.Contains(lower, "</body>")
}
