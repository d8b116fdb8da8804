package scan

import (
	"errors"
	"fmt"
	"go/ast"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

const (
	contractDirective = "//polyglot:contract"
	messageDirective  = "//polyglot:message"
)

// ErrDirective is returned for directives that cannot be parsed.
var ErrDirective = errors.New("malformed polyglot directive")

// findDirective returns the arguments of the directive named by prefix in
// the comment groups, and whether it is present.
func findDirective(prefix string, groups ...*ast.CommentGroup) (string, bool) {
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			rest, ok := strings.CutPrefix(c.Text, prefix)
			if !ok {
				continue
			}
			if rest != "" && !unicode.IsSpace(rune(rest[0])) {
				continue
			}
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// parseArgs splits `name=value name="quoted value"` pairs. Quoted values
// use Go string syntax.
func parseArgs(s string) (map[string]string, error) {
	args := map[string]string{}
	for s = strings.TrimSpace(s); s != ""; s = strings.TrimSpace(s) {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: expected name=value in %q", ErrDirective, s)
		}
		name := s[:eq]
		if strings.ContainsFunc(name, unicode.IsSpace) {
			return nil, fmt.Errorf("%w: bad argument name %q", ErrDirective, name)
		}
		s = s[eq+1:]

		var value string
		if s != "" && (s[0] == '"' || s[0] == '`') {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return nil, fmt.Errorf("%w: bad quoted value for %s: %w", ErrDirective, name, err)
			}
			value, _ = strconv.Unquote(quoted)
			s = s[len(quoted):]
		} else {
			end := strings.IndexFunc(s, unicode.IsSpace)
			if end < 0 {
				end = len(s)
			}
			value, s = s[:end], s[end:]
		}

		if _, dup := args[name]; dup {
			return nil, fmt.Errorf("%w: %s given twice", ErrDirective, name)
		}
		args[name] = value
	}
	return args, nil
}

func checkKnown(args map[string]string, known ...string) error {
	for name := range args {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%w: unknown argument %s", ErrDirective, name)
		}
	}
	return nil
}

