package selector

import (
	"fmt"
	"strings"
	"unicode"
)

var closers = map[rune]rune{')': '(', ']': '[', '}': '{'}

// '!' and '?' are left out: they end bang and predicate method names.
const trailingOperators = "+-*/%&|^=<>,.~:"

// Validate runs a lexical check on an expression: brackets balance, string
// literals are closed and the expression does not end in an operator. An
// unquoted '#' starts a comment that runs to the end of the line.
func Validate(expr string) error {
	src := strings.TrimSpace(expr)
	if src == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExpression)
	}

	var (
		stack   []rune
		quote   rune
		escaped bool
		comment bool
		last    rune
	)
	for i, c := range src {
		switch {
		case comment:
			if c == '\n' {
				comment = false
			}
			continue
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			last = c
			continue
		}
		switch c {
		case '#':
			comment = true
			continue
		case '\'', '"', '`':
			quote = c
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != closers[c] {
				return fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidExpression, c, i, src)
			}
			stack = stack[:len(stack)-1]
		}
		if !unicode.IsSpace(c) {
			last = c
		}
	}

	switch {
	case quote != 0:
		return fmt.Errorf("%w: unterminated string in %q", ErrInvalidExpression, src)
	case len(stack) > 0:
		return fmt.Errorf("%w: unclosed %q in %q", ErrInvalidExpression, stack[len(stack)-1], src)
	case last == 0:
		return fmt.Errorf("%w: only a comment in %q", ErrInvalidExpression, src)
	case strings.ContainsRune(trailingOperators, last):
		return fmt.Errorf("%w: %q ends in an operator", ErrInvalidExpression, src)
	}
	return nil
}
