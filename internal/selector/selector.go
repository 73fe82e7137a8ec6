// Package selector parses method selectors such as "Foo#bar(@x, y.size)"
// into a base selector and the display expressions that follow it.
package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrInvalidExpression is returned for expressions that fail the local
	// syntax check. They are never sent to the target.
	ErrInvalidExpression = errors.New("invalid expression")

	// ErrEmpty is returned for blank selectors.
	ErrEmpty = errors.New("empty selector")
)

var (
	withExprs = regexp.MustCompile(`^(.+?)\((.+)\)$`)
	plainIvar = regexp.MustCompile(`(?i)^@[_a-z][_a-z0-9]+$`)
)

// Selector is a method pattern plus the expressions shown for each call.
type Selector struct {
	Method string
	Exprs  []string
}

// String reassembles the selector.
func (s Selector) String() string {
	if len(s.Exprs) == 0 {
		return s.Method
	}
	exprs := lo.Map(s.Exprs, func(e string, _ int) string { return strings.TrimSpace(e) })
	return s.Method + "(" + strings.Join(exprs, ", ") + ")"
}

// Parse splits raw into its base selector and validated expressions.
// An expression starting with @ that is not a plain instance variable gets
// a leading space so the target evaluates it instead of reading an ivar.
func Parse(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selector{}, ErrEmpty
	}

	m := withExprs.FindStringSubmatch(raw)
	if m == nil {
		return Selector{Method: raw}, nil
	}

	sel := Selector{Method: strings.TrimSpace(m[1])}
	for _, expr := range splitExprs(m[2]) {
		if err := Validate(expr); err != nil {
			return Selector{}, fmt.Errorf("%w in method %q", err, raw)
		}
		if strings.HasPrefix(expr, "@") && !plainIvar.MatchString(expr) {
			expr = " " + expr
		}
		sel.Exprs = append(sel.Exprs, expr)
	}
	return sel, nil
}

// ParseAll parses every non-blank selector in raw, failing on the first
// invalid one.
func ParseAll(raw []string) ([]Selector, error) {
	var out []Selector
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		sel, err := Parse(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// splitExprs splits on top level commas and drops empty entries.
func splitExprs(s string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, c := range s {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])

	return lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}
