package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the parse step that produced an object.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyFenced   Strategy = "fenced"
	StrategyBraces   Strategy = "braces"
	StrategyRepaired Strategy = "repaired"
	StrategyFallback Strategy = "fallback"
)

type parseFunc func(text string) (map[string]any, bool)

// strategies run in order; the first object wins.
var strategies = []struct {
	name  Strategy
	parse parseFunc
}{
	{StrategyDirect, parseDirect},
	{StrategyFenced, parseFenced},
	{StrategyBraces, parseBraces},
	{StrategyRepaired, parseRepaired},
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

func parseObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func parseDirect(text string) (map[string]any, bool) {
	return parseObject(text)
}

func parseFenced(text string) (map[string]any, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseBraces(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return parseObject(text[start : end+1])
}

// parseRepaired closes what a truncated reply left open: an unterminated
// string, a dangling separator, and any unclosed brackets.
func parseRepaired(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	s := strings.TrimSpace(text[start:])
	s = strings.TrimSpace(strings.TrimSuffix(s, "```"))

	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return nil, false
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) == 0 && !inString {
		// Balanced already; the braces strategy had its chance
		return nil, false
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			trimmed := strings.TrimSuffix(b.String(), `\`)
			b.Reset()
			b.WriteString(trimmed)
		}
		b.WriteByte('"')
	}

	out := strings.TrimRight(b.String(), " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = strings.TrimSuffix(out, ",")
	case strings.HasSuffix(out, ":"):
		out += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return parseObject(out)
}
