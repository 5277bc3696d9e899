package tokenizer

import "strings"

// Tokenize splits a raw prompt string into semantic tags. Bracketed groups
// (<...>, [...], (...)) are kept verbatim as single tokens so that weighted
// syntax like "(masterpiece:1.2)" or "<lora:name:1>" survives the split even
// when it contains commas. Everything else is split on commas. Tokens are
// trimmed; empty tokens are dropped.
func Tokenize(text string) []string {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	var out []string
	emit := func(raw string) {
		if t := strings.TrimSpace(raw); t != "" {
			out = append(out, t)
		}
	}

	i := 0
	for i < len(s) {
		switch s[i] {
		case ',':
			i++
		case '<':
			j := spanEnd(s, i, '<', '>')
			emit(s[i:j])
			i = j
		case '[':
			j := spanEnd(s, i, '[', ']')
			emit(s[i:j])
			i = j
		case '(':
			j := spanEnd(s, i, '(', ')')
			emit(s[i:j])
			i = j
		default:
			j := i
			for j < len(s) && s[j] != ',' && s[j] != '<' && s[j] != '[' && s[j] != '(' {
				j++
			}
			emit(s[i:j])
			i = j
		}
	}
	return out
}

// spanEnd returns the index just past the bracket group opening at start,
// tracking nesting of the same bracket kind. An unclosed group extends to the
// end of the string.
func spanEnd(s string, start int, open, closing byte) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(s)
}
