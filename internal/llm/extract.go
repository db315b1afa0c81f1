package llm

import (
	"errors"
	"strings"
)

var errNoObject = errors.New("no balanced JSON object found")

// extractObject returns the first balanced JSON object in s. A surrounding
// Markdown fence, a BOM and leading prose are tolerated.
func extractObject(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")
	if inner, ok := unfence(s); ok {
		s = strings.TrimSpace(inner)
	}
	for i := strings.IndexByte(s, '{'); i >= 0; {
		if out, ok := balancedObjectAt(s, i); ok {
			return out, nil
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", errNoObject
}

// unfence strips one ``` or ~~~ block, with an optional language tag line.
func unfence(s string) (string, bool) {
	for _, fence := range []string{"```", "~~~"} {
		if !strings.HasPrefix(s, fence) {
			continue
		}
		rest := s[len(fence):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", false
		}
		rest = rest[nl+1:]
		if end := strings.Index(rest, fence); end >= 0 {
			return rest[:end], true
		}
		return rest, true
	}
	return "", false
}

// balancedObjectAt scans from the '{' at start, skipping braces inside strings.
func balancedObjectAt(s string, start int) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return "", false
			}
			if depth == 0 {
				if c != '}' {
					return "", false
				}
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
