// Package msgformat renders positional message templates such as
// "You still have {0} retries.".
//
// Supported syntax: {n}, {n,number}, {n,number,integer} and
// {n,number,percent} placeholders, single quotes for literal text ('{0}'
// prints {0}) and '' for a quote. An unterminated quote runs to the end of
// the pattern. Numbers are formatted for the target locale.
package msgformat

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrMalformed is returned for templates that cannot be parsed.
var ErrMalformed = errors.New("malformed message template")

const defaultMaxFractionDigits = 3

type style int

const (
	styleDefault style = iota
	styleNumber
	styleInteger
	stylePercent
)

type segment struct {
	literal string
	arg     int
	style   style
	isArg   bool
}

// Template is a parsed message template.
type Template struct {
	pattern  string
	segments []segment
}

// Compile parses pattern.
func Compile(pattern string) (*Template, error) {
	t := &Template{pattern: pattern}

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	inQuote := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\'':
			if i+1 < len(pattern) && pattern[i+1] == '\'' {
				lit.WriteByte('\'')
				i++
				continue
			}
			inQuote = !inQuote
		case inQuote:
			lit.WriteByte(c)
		case c == '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unmatched braces in %q", ErrMalformed, pattern)
			}
			seg, err := parseArgument(pattern[i+1 : i+1+end])
			if err != nil {
				return nil, fmt.Errorf("%w in %q", err, pattern)
			}
			flush()
			t.segments = append(t.segments, seg)
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	return t, nil
}

func parseArgument(body string) (segment, error) {
	parts := strings.Split(body, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 {
		return segment{}, fmt.Errorf("%w: argument index %q is not a number", ErrMalformed, parts[0])
	}

	seg := segment{arg: idx, isArg: true}
	switch {
	case len(parts) == 1:
		seg.style = styleDefault
	case parts[1] == "number" && (len(parts) == 2 || parts[2] == ""):
		seg.style = styleNumber
	case parts[1] == "number" && len(parts) == 3 && parts[2] == "integer":
		seg.style = styleInteger
	case parts[1] == "number" && len(parts) == 3 && parts[2] == "percent":
		seg.style = stylePercent
	default:
		return segment{}, fmt.Errorf("%w: unsupported format {%s}", ErrMalformed, body)
	}
	return seg, nil
}

// Execute renders the template for locale. Placeholders without a matching
// argument are kept as written.
func (t *Template) Execute(locale language.Tag, args ...any) string {
	p := message.NewPrinter(locale)

	var out strings.Builder
	for _, seg := range t.segments {
		if !seg.isArg {
			out.WriteString(seg.literal)
			continue
		}
		if seg.arg >= len(args) {
			out.WriteString("{" + strconv.Itoa(seg.arg) + "}")
			continue
		}
		out.WriteString(formatArg(p, args[seg.arg], seg.style))
	}
	return out.String()
}

// String returns the source pattern.
func (t *Template) String() string {
	return t.pattern
}

// Format compiles pattern and executes it in one step.
func Format(locale language.Tag, pattern string, args ...any) (string, error) {
	t, err := Compile(pattern)
	if err != nil {
		return "", err
	}
	return t.Execute(locale, args...), nil
}

func formatArg(p *message.Printer, arg any, st style) string {
	switch v := arg.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	}

	if v, ok := numeric(arg); ok {
		switch st {
		case stylePercent:
			return p.Sprintf("%v", number.Percent(v, number.MaxFractionDigits(0)))
		case styleInteger:
			return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0)))
		default:
			return p.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(defaultMaxFractionDigits)))
		}
	}
	return fmt.Sprint(arg)
}

func numeric(arg any) (any, bool) {
	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return nil, false
	}
}
